package auth

import (
	"testing"
	"time"

	"github.com/angelmondragon/allocations-backend/pkg/config"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "allocations",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseOperatorToken(t *testing.T) {
	cfg := testJWTConfig()
	operatorID := uuid.New()

	token, err := MintOperatorToken(cfg, time.Now().UTC(), OperatorTokenPayload{
		OperatorID: operatorID,
		Email:      "ops@winery.test",
		Role:       enums.OperatorRoleEditor,
		TenantID:   "winery-1",
		JTI:        "fixed-jti",
	})
	if err != nil {
		t.Fatalf("mint operator token: %v", err)
	}

	claims, err := ParseOperatorToken(cfg, token)
	if err != nil {
		t.Fatalf("parse operator token: %v", err)
	}
	if claims.OperatorID != operatorID {
		t.Fatalf("expected operator_id %s, got %s", operatorID, claims.OperatorID)
	}
	if claims.Role != enums.OperatorRoleEditor {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.ID != "fixed-jti" {
		t.Fatalf("expected jti to be preserved, got %q", claims.ID)
	}
	if claims.Subject != operatorID.String() {
		t.Fatalf("expected subject to be operator id, got %q", claims.Subject)
	}
}

func TestParseOperatorTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintOperatorToken(cfg, time.Now().Add(-2*time.Hour), OperatorTokenPayload{
		OperatorID: uuid.New(),
		Role:       enums.OperatorRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint operator token: %v", err)
	}
	if _, err := ParseOperatorToken(cfg, token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseOperatorTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintOperatorToken(cfg, time.Now(), OperatorTokenPayload{
		OperatorID: uuid.New(),
		Role:       enums.OperatorRoleViewer,
	})
	if err != nil {
		t.Fatalf("mint operator token: %v", err)
	}
	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseOperatorToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestMintOperatorTokenValidatesPayload(t *testing.T) {
	cfg := testJWTConfig()
	if _, err := MintOperatorToken(cfg, time.Now(), OperatorTokenPayload{Role: enums.OperatorRoleAdmin}); err == nil {
		t.Fatal("expected missing operator id to fail")
	}
	if _, err := MintOperatorToken(cfg, time.Now(), OperatorTokenPayload{OperatorID: uuid.New(), Role: "root"}); err == nil {
		t.Fatal("expected invalid role to fail")
	}
	if _, err := MintOperatorToken(config.JWTConfig{}, time.Now(), OperatorTokenPayload{}); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}
