package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/allocations-backend/api/responses"
	pkgAuth "github.com/angelmondragon/allocations-backend/pkg/auth"
	"github.com/angelmondragon/allocations-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
)

// Auth validates an operator bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseOperatorToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			operatorID := claims.OperatorID.String()
			ctx := WithOperator(r.Context(), operatorID, claims.Role)
			if claims.TenantID != "" {
				ctx = context.WithValue(ctx, ctxTenantID, claims.TenantID)
			}

			if logg != nil {
				ctx = logg.WithOperatorID(ctx, operatorID)
				ctx = logg.WithField(ctx, "operator_role", string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
