package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/allocations-backend/api/responses"
	"github.com/angelmondragon/allocations-backend/api/validators"
	"github.com/angelmondragon/allocations-backend/internal/audience"
	"github.com/angelmondragon/allocations-backend/internal/overrides"
	"github.com/angelmondragon/allocations-backend/internal/tiers"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
)

// Required tier fields are checked by the service so missing ones are reported together.
type createTierRequest struct {
	Name             string                      `json:"name"`
	Level            *int                        `json:"level"`
	AccessStart      *time.Time                  `json:"access_start"`
	AccessEnd        *time.Time                  `json:"access_end"`
	Bundle           *overrides.Terms            `json:"bundle"`
	ProductOverrides map[string]overrides.Fields `json:"product_overrides"`
	ActiveKind       enums.SourceKind            `json:"active_kind"`
	Sources          audience.Sources            `json:"sources" validate:"omitempty,dive,dive"`
}

type addSourcesRequest struct {
	Sources audience.Sources `json:"sources" validate:"required,min=1,dive,dive"`
}

func CreateTier(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allocationID, err := validators.ParseUUIDParam(r, "allocationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithAllocationID(ctx, allocationID.String())
		}

		var req createTierRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := tiers.CreateTierInput{
			AllocationID: allocationID,
			Name:         validators.SanitizeString(req.Name, maxNameLength),
			Level:        req.Level,
			AccessStart:  req.AccessStart,
			AccessEnd:    req.AccessEnd,
			Bundle:       req.Bundle,
			ActiveKind:   req.ActiveKind,
			Sources:      req.Sources,
		}
		draft := overrides.NewDraft(func(set map[string]overrides.Fields) {
			input.ProductOverrides = set
		})
		for productID, fields := range req.ProductOverrides {
			draft.Set(productID, fields)
		}
		if err := draft.Save(); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.CreateTier(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ListTiers returns the allocation's tiers in ascending level order.
func ListTiers(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allocationID, err := validators.ParseUUIDParam(r, "allocationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListTiers(r.Context(), allocationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, list, "")
	}
}

func GetTier(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tierID, err := validators.ParseUUIDParam(r, "tierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tier, err := svc.GetTier(r.Context(), tierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tier)
	}
}

func DeleteTier(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.DeleteTier(ctx, tierID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// TierCustomers returns the tier's membership rows and counts.
func TierCustomers(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tierID, err := validators.ParseUUIDParam(r, "tierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		membership, err := svc.Membership(r.Context(), tierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, membership)
	}
}

func AddTierSources(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req addSourcesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		membership, err := svc.AddSources(ctx, tierID, req.Sources)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, membership)
	}
}

func RemoveTierSource(svc tiers.Service, logg *logger.Logger) http.HandlerFunc {
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

		kind, err := enums.ParseSourceKind(strings.TrimSpace(chi.URLParam(r, "kind")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid source kind"))
			return
		}
		sourceID := strings.TrimSpace(chi.URLParam(r, "sourceId"))
		if sourceID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "source id is required"))
			return
		}

		membership, err := svc.RemoveSource(ctx, tierID, kind, sourceID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, membership)
	}
}
