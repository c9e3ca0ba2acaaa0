package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/allocations-backend/api/responses"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
	"github.com/angelmondragon/allocations-backend/pkg/reporting"
)

type reportingFetcher interface {
	Fetch(ctx context.Context, op reporting.Operation, params map[string]string) (json.RawMessage, error)
}

type reportingOperation struct {
	Name   reporting.Operation `json:"name"`
	Params []string            `json:"params"`
}

// ListReportingOperations describes the operations the proxy accepts.
func ListReportingOperations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ops := reporting.Operations()
		out := make([]reportingOperation, 0, len(ops))
		for _, op := range ops {
			params := op.Params()
			if params == nil {
				params = []string{}
			}
			out = append(out, reportingOperation{Name: op, Params: params})
		}
		responses.WriteList(w, out, "")
	}
}

// ReportingProxy dispatches one read operation to the Reporting API. Operation
// params are taken from the query string.
func ReportingProxy(client reportingFetcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "reporting api not configured"))
			return
		}

		op, err := reporting.ParseOperation(chi.URLParam(r, "operation"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown reporting operation"))
			return
		}

		params := map[string]string{}
		var missing []string
		for _, name := range op.Params() {
			value := strings.TrimSpace(r.URL.Query().Get(name))
			if value == "" {
				missing = append(missing, name)
				continue
			}
			params[name] = value
		}
		if len(missing) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing reporting params").
				WithDetails(map[string]any{"operation": op, "params": missing}))
			return
		}

		raw, err := client.Fetch(r.Context(), op, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, raw)
	}
}
