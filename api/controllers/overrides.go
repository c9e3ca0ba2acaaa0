package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/allocations-backend/api/responses"
	"github.com/angelmondragon/allocations-backend/api/validators"
	"github.com/angelmondragon/allocations-backend/internal/overrides"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
)

// The full set replaces what is stored; products left out lose their override.
type saveProductOverridesRequest struct {
	ProductOverrides map[string]overrides.Fields `json:"product_overrides"`
}

func GetTierBundle(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tierID, err := validators.ParseUUIDParam(r, "tierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bundle, err := svc.GetBundle(r.Context(), tierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bundle)
	}
}

func SaveTierBundle(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tierID, err := validators.ParseUUIDParam(r, "tierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithTierID(ctx, tierID.String())
		}

		var req overrides.Terms
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		bundle, err := svc.SaveBundle(ctx, tierID, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, bundle)
	}
}

func ListProductOverrides(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tierID, err := validators.ParseUUIDParam(r, "tierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		set, err := svc.ListOverrides(r.Context(), tierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, set)
	}
}

func SaveProductOverrides(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tierID, err := validators.ParseUUIDParam(r, "tierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithTierID(ctx, tierID.String())
		}

		var req saveProductOverridesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		saved, err := svc.SaveProductOverrides(ctx, tierID, req.ProductOverrides)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, saved)
	}
}

func SetProductOverride(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tierID, err := validators.ParseUUIDParam(r, "tierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithTierID(ctx, tierID.String())
		}

		productID := strings.TrimSpace(chi.URLParam(r, "productId"))
		if productID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}

		var req overrides.Fields
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		saved, err := svc.SetOverride(ctx, tierID, productID, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, saved)
	}
}

// EffectiveTierTerms returns the allocation defaults with the tier's overrides applied.
func EffectiveTierTerms(svc overrides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tierID, err := validators.ParseUUIDParam(r, "tierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		terms, err := svc.EffectiveTerms(r.Context(), tierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, terms)
	}
}
