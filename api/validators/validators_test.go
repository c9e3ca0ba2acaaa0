package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/allocations-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
)

type sampleBody struct {
	Name  string `json:"name" validate:"required"`
	Level int    `json:"level" validate:"gt=0"`
}

func TestDecodeJSONBodyReportsJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"level":0}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", pkgerrors.As(err).Details())
	}
	if details["name"] != "is required" {
		t.Fatalf("unexpected name detail %q", details["name"])
	}
	if details["level"] != "must be greater than 0" {
		t.Fatalf("unexpected level detail %q", details["level"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Gold","level":1,"extra":true}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown field, got %v", err)
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err := ParseQueryInt(req, "limit", 25, 1, 100)
	if err != nil || got != 25 {
		t.Fatalf("expected default 25, got %d (%v)", got, err)
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "tierId", id.String())
	got, err := ParseUUIDParam(req, "tierId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}

	req = withParam(httptest.NewRequest(http.MethodGet, "/", nil), "tierId", "nope")
	if _, err := ParseUUIDParam(req, "tierId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryEnum(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?status=active", nil)
	got, err := ParseQueryEnum(req, "status", enums.ParseAllocationStatus)
	if err != nil || got == nil || *got != enums.AllocationStatusActive {
		t.Fatalf("expected active status, got %v (%v)", got, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/?status=bogus", nil)
	if _, err := ParseQueryEnum(req, "status", enums.ParseAllocationStatus); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  Gold tier  ", 4); got != "Gold" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
}

func TestSanitizeStringKeepsMultiByteCharactersWhole(t *testing.T) {
	name := "a" + strings.Repeat("é", 60)
	got := SanitizeString(name, 120)
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid utf-8 after truncation, got %q", got)
	}
	if want := "a" + strings.Repeat("é", 59); got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func withParam(req *http.Request, key, value string) *http.Request {
	ctx := chi.NewRouteContext()
	ctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, ctx))
}
