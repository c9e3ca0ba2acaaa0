package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/allocations-backend/api/responses"
	"github.com/angelmondragon/allocations-backend/api/validators"
	"github.com/angelmondragon/allocations-backend/internal/allocations"
	"github.com/angelmondragon/allocations-backend/internal/overrides"
	"github.com/angelmondragon/allocations-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/allocations-backend/pkg/errors"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
	"github.com/angelmondragon/allocations-backend/pkg/pagination"
)

const maxNameLength = 120

type createAllocationRequest struct {
	Name        string               `json:"name" validate:"required"`
	Description *string              `json:"description"`
	Type        enums.AllocationType `json:"type" validate:"required,oneof=tier individual"`
	StartsAt    time.Time            `json:"starts_at" validate:"required"`
	EndsAt      time.Time            `json:"ends_at" validate:"required"`
	Terms       overrides.Terms      `json:"terms"`
}

type updateAllocationRequest struct {
	Name        *string               `json:"name" validate:"omitempty,min=1"`
	Description *string               `json:"description"`
	Type        *enums.AllocationType `json:"type" validate:"omitempty,oneof=tier individual"`
	StartsAt    *time.Time            `json:"starts_at"`
	EndsAt      *time.Time            `json:"ends_at"`
	Terms       *overrides.Terms      `json:"terms"`
}

type transitionRequest struct {
	Status enums.AllocationStatus `json:"status" validate:"required"`
}

type addProductRequest struct {
	ProductID         string          `json:"product_id" validate:"required"`
	Name              string          `json:"name" validate:"required"`
	Price             decimal.Decimal `json:"price"`
	MinPurchase       *int            `json:"min_purchase" validate:"omitempty,min=0"`
	MaxPurchase       *int            `json:"max_purchase" validate:"omitempty,min=0"`
	AllowWishRequests bool            `json:"allow_wish_requests"`
	WishRequestMin    *int            `json:"wish_request_min" validate:"omitempty,min=0"`
	WishRequestMax    *int            `json:"wish_request_max" validate:"omitempty,min=0"`
}

func ListAllocations(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.ParseQueryEnum(r, "status", enums.ParseAllocationStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := allocations.ListParams{
			Status: status,
			Params: pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")},
		}
		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, page.Items, page.NextCursor)
	}
}

func CreateAllocation(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAllocationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), allocations.CreateInput{
			Name:        validators.SanitizeString(req.Name, maxNameLength),
			Description: req.Description,
			Type:        req.Type,
			StartsAt:    req.StartsAt,
			EndsAt:      req.EndsAt,
			Terms:       req.Terms,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func GetAllocation(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "allocationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithAllocationID(ctx, id.String())
		}

		allocation, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocation)
	}
}

func UpdateAllocation(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "allocationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithAllocationID(ctx, id.String())
		}

		var req updateAllocationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if req.Name != nil {
			name := validators.SanitizeString(*req.Name, maxNameLength)
			req.Name = &name
		}

		updated, err := svc.Update(ctx, id, allocations.UpdateInput{
			Name:        req.Name,
			Description: req.Description,
			Type:        req.Type,
			StartsAt:    req.StartsAt,
			EndsAt:      req.EndsAt,
			Terms:       req.Terms,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func TransitionAllocationStatus(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "allocationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithAllocationID(ctx, id.String())
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !req.Status.IsValid() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown allocation status").
				WithDetails(map[string]any{"status": req.Status}))
			return
		}

		updated, err := svc.TransitionStatus(ctx, id, req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func DeleteAllocation(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "allocationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithAllocationID(ctx, id.String())
		}

		if err := svc.Delete(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// AllocationOverview returns defaults, ordered tiers, the type summary and progress.
func AllocationOverview(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "allocationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithAllocationID(ctx, id.String())
		}

		overview, err := svc.Overview(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

func ListAllocationProducts(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "allocationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := svc.ListProducts(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, products, "")
	}
}

func AddAllocationProduct(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "allocationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithAllocationID(ctx, id.String())
		}

		var req addProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		product, err := svc.AddProduct(ctx, id, allocations.ProductInput{
			ProductID:         validators.SanitizeString(req.ProductID, 0),
			Name:              validators.SanitizeString(req.Name, maxNameLength),
			Price:             req.Price,
			MinPurchase:       req.MinPurchase,
			MaxPurchase:       req.MaxPurchase,
			AllowWishRequests: req.AllowWishRequests,
			WishRequestMin:    req.WishRequestMin,
			WishRequestMax:    req.WishRequestMax,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}
