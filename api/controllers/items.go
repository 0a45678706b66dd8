package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/srms-platform/srms-backend/api/middleware"
	"github.com/srms-platform/srms-backend/api/responses"
	"github.com/srms-platform/srms-backend/api/validators"
	"github.com/srms-platform/srms-backend/internal/warehouses"
	"github.com/srms-platform/srms-backend/pkg/enums"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/outbox"
)

// itemRequest is shared by create and update. Quantity only seeds a new
// item; stock changes afterwards go through adjustments.
type itemRequest struct {
	SKU          string          `json:"sku" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required,max=200"`
	Unit         string          `json:"unit" validate:"required,max=16"`
	Quantity     int64           `json:"quantity" validate:"gte=0"`
	MinThreshold int64           `json:"min_threshold" validate:"gte=0"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Version      int64           `json:"version" validate:"gte=0"`
}

func (r itemRequest) toInput() warehouses.ItemInput {
	return warehouses.ItemInput{
		SKU:          r.SKU,
		Name:         r.Name,
		Unit:         r.Unit,
		Quantity:     r.Quantity,
		MinThreshold: r.MinThreshold,
		UnitCost:     r.UnitCost,
		Version:      r.Version,
	}
}

type adjustmentRequest struct {
	Delta  int64   `json:"delta" validate:"required"`
	Reason string  `json:"reason" validate:"required,oneof=restock sale return damage transfer correction"`
	Note   *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

func (r adjustmentRequest) toInput(actor *outbox.ActorRef) warehouses.AdjustmentInput {
	return warehouses.AdjustmentInput{
		Delta:  r.Delta,
		Reason: enums.AdjustmentReason(r.Reason),
		Note:   r.Note,
		Actor:  actor,
	}
}

func ItemList(svc warehouses.InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		warehouseID, err := validators.ParseUUIDParam(r, "warehouseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, showDeleted, err := validators.ParseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListItems(r.Context(), warehouseID, req, showDeleted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func ItemCreate(svc warehouses.InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		warehouseID, err := validators.ParseUUIDParam(r, "warehouseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, ok := decodeInto[itemRequest](w, r, logg)
		if !ok {
			return
		}
		dto, err := svc.CreateItem(r.Context(), warehouseID, req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func ItemGet(svc warehouses.InventoryService, logg *logger.Logger) http.HandlerFunc {
	return getResource("itemId", svc.GetItem, logg)
}

func ItemUpdate(svc warehouses.InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, ok := decodeInto[itemRequest](w, r, logg)
		if !ok {
			return
		}
		dto, err := svc.UpdateItem(r.Context(), id, req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func ItemDelete(svc warehouses.InventoryService, logg *logger.Logger) http.HandlerFunc {
	return deleteResource("itemId", svc.SoftDeleteItem, logg)
}

func ItemRestore(svc warehouses.InventoryService, logg *logger.Logger) http.HandlerFunc {
	return restoreResource("itemId", svc.RestoreItem, logg)
}

// ItemAdjust applies one stock movement on behalf of the calling subject.
func ItemAdjust(svc warehouses.InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, ok := decodeInto[adjustmentRequest](w, r, logg)
		if !ok {
			return
		}
		result, err := svc.AdjustStock(r.Context(), id, req.toInput(actorFromRequest(r)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func ItemHistory(svc warehouses.InventoryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParseCursorParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.History(r.Context(), id, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func actorFromRequest(r *http.Request) *outbox.ActorRef {
	subject := middleware.SubjectFromContext(r.Context())
	if subject == "" {
		return nil
	}
	roles := middleware.RolesFromContext(r.Context())
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.String())
	}
	return &outbox.ActorRef{Subject: subject, Roles: names}
}
