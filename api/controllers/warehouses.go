package controllers

import (
	"net/http"

	"github.com/srms-platform/srms-backend/api/responses"
	"github.com/srms-platform/srms-backend/api/validators"
	"github.com/srms-platform/srms-backend/internal/warehouses"
	"github.com/srms-platform/srms-backend/pkg/logger"
)

// warehouseRequest is shared by create and update. Version is ignored on
// create and must echo the last read value on update.
type warehouseRequest struct {
	Code     string  `json:"code" validate:"required,max=32"`
	Name     string  `json:"name" validate:"required,max=200"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Capacity int64   `json:"capacity" validate:"gte=0"`
	Version  int64   `json:"version" validate:"gte=0"`
}

func (r warehouseRequest) toInput() warehouses.WarehouseInput {
	return warehouses.WarehouseInput{
		Code:     r.Code,
		Name:     r.Name,
		Address:  r.Address,
		Capacity: r.Capacity,
		Version:  r.Version,
	}
}

func WarehouseList(svc warehouses.Service, logg *logger.Logger) http.HandlerFunc {
	return listResource(svc.List, logg)
}

func WarehouseGet(svc warehouses.Service, logg *logger.Logger) http.HandlerFunc {
	return getResource("id", svc.Get, logg)
}

func WarehouseCreate(svc warehouses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeInto[warehouseRequest](w, r, logg)
		if !ok {
			return
		}
		dto, err := svc.Create(r.Context(), req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func WarehouseUpdate(svc warehouses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, ok := decodeInto[warehouseRequest](w, r, logg)
		if !ok {
			return
		}
		dto, err := svc.Update(r.Context(), id, req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func WarehouseDelete(svc warehouses.Service, logg *logger.Logger) http.HandlerFunc {
	return deleteResource("id", svc.SoftDelete, logg)
}

func WarehouseRestore(svc warehouses.Service, logg *logger.Logger) http.HandlerFunc {
	return restoreResource("id", svc.Restore, logg)
}

// WarehouseStatistics summarises the active stock held by one warehouse.
func WarehouseStatistics(svc warehouses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "warehouseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stats, err := svc.Statistics(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
