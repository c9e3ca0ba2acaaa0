package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/angelmondragon/allocations-backend/pkg/reporting"
)

type stubFetcher struct {
	op     reporting.Operation
	params map[string]string
	body   json.RawMessage
	err    error
}

func (s *stubFetcher) Fetch(_ context.Context, op reporting.Operation, params map[string]string) (json.RawMessage, error) {
	s.op = op
	s.params = params
	return s.body, s.err
}

func withOperation(req *http.Request, op string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("operation", op)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestReportingProxyPassesRawBody(t *testing.T) {
	fetcher := &stubFetcher{body: json.RawMessage(`[{"id":"c1"}]`)}
	req := withOperation(httptest.NewRequest(http.MethodGet, "/?id=club-9", nil), "club_members")
	resp := httptest.NewRecorder()
	ReportingProxy(fetcher, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if fetcher.op != reporting.OpClubMembers || fetcher.params["id"] != "club-9" {
		t.Fatalf("unexpected dispatch op=%s params=%v", fetcher.op, fetcher.params)
	}
	if strings.TrimSpace(resp.Body.String()) != `{"data":[{"id":"c1"}]}` {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestReportingProxyRequiresParams(t *testing.T) {
	fetcher := &stubFetcher{}
	req := withOperation(httptest.NewRequest(http.MethodGet, "/", nil), "orders_created")
	resp := httptest.NewRecorder()
	ReportingProxy(fetcher, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if fetcher.op != "" {
		t.Fatalf("fetch should not run without params")
	}
}

func TestReportingProxyUnknownOperation(t *testing.T) {
	req := withOperation(httptest.NewRequest(http.MethodGet, "/", nil), "drop_tables")
	resp := httptest.NewRecorder()
	ReportingProxy(&stubFetcher{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestReportingProxyMapsUpstreamError(t *testing.T) {
	fetcher := &stubFetcher{err: pkgerrors.New(pkgerrors.CodeRateLimit, "reporting api throttled")}
	req := withOperation(httptest.NewRequest(http.MethodGet, "/", nil), "clubs")
	resp := httptest.NewRecorder()
	ReportingProxy(fetcher, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
}
