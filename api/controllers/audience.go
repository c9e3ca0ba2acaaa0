package controllers

import (
	"net/http"

	"github.com/angelmondragon/allocations-backend/api/responses"
	"github.com/angelmondragon/allocations-backend/api/validators"
	"github.com/angelmondragon/allocations-backend/internal/audience"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
)

type estimateRequest struct {
	ActiveKind enums.SourceKind `json:"active_kind"`
	Sources    audience.Sources `json:"sources" validate:"omitempty,dive,dive"`
	// Exact resolves every source's members to count distinct customers.
	Exact bool `json:"exact"`
}

type estimateResponse struct {
	audience.Summary
	ExactCustomers *int `json:"exact_customers,omitempty"`
}

// EstimateAudience summarises a selection the way the tier builder shows it.
func EstimateAudience(resolver audience.MemberResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req estimateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sel, err := audience.SelectionFrom(req.ActiveKind, req.Sources)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := estimateResponse{Summary: sel.Summary()}
		if req.Exact {
			assignments, err := audience.Flatten(r.Context(), sel, resolver)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			exact := audience.ExactCustomers(assignments)
			resp.ExactCustomers = &exact
		}
		responses.WriteSuccess(w, resp)
	}
}
