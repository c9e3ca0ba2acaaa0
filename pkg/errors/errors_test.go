package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", detailsOK: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodePersistence, status: http.StatusServiceUnavailable, publicMsg: "the operation could not be saved, please try again", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestPersistenceCarriesStep(t *testing.T) {
	err := Persistence(stdErrors.New("disk full"), "insert_tier")
	if err.Code() != CodePersistence {
		t.Fatalf("expected persistence code, got %s", err.Code())
	}
	if err.Step() != "insert_tier" {
		t.Fatalf("expected step insert_tier, got %q", err.Step())
	}

	outer := fmt.Errorf("create tier: %w", err)
	if !IsCode(outer, CodePersistence) {
		t.Fatalf("expected IsCode to see through wrapping")
	}
	if IsCode(outer, CodeValidation) {
		t.Fatalf("unexpected validation code match")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpExtractsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "allocation_tiers_allocation_level_key", TableName: "allocation_tiers"}
	dump := Dump(Persistence(pgErr, "insert_tier"))
	if dump.PGCode != "23505" {
		t.Fatalf("expected pg code 23505, got %q", dump.PGCode)
	}
	if dump.PGConstraint != "allocation_tiers_allocation_level_key" {
		t.Fatalf("unexpected constraint %q", dump.PGConstraint)
	}
	if dump.Step != "insert_tier" {
		t.Fatalf("expected step to be dumped, got %q", dump.Step)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected chain of 2 errors, got %d", len(dump.Chain))
	}

	pqErr := &pq.Error{Code: "23503", Table: "tier_overrides"}
	if code := PostgresCode(pqErr); code != "23503" {
		t.Fatalf("expected pq code 23503, got %q", code)
	}
	if PostgresCode(stdErrors.New("plain")) != "" {
		t.Fatalf("expected empty code for plain errors")
	}
}
