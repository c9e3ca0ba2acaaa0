package auth

import (
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// OperatorTokenPayload captures the data available when minting a console token.
type OperatorTokenPayload struct {
	OperatorID uuid.UUID
	Email      string
	Role       enums.OperatorRole
	TenantID   string
	JTI        string
}

// OperatorClaims represents the typed JWT carried by console requests.
type OperatorClaims struct {
	OperatorID uuid.UUID          `json:"operator_id"`
	Email      string             `json:"email,omitempty"`
	Role       enums.OperatorRole `json:"role"`
	TenantID   string             `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}
