package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/srms-platform/srms-backend/api/responses"
	"github.com/srms-platform/srms-backend/api/validators"
	"github.com/srms-platform/srms-backend/internal/customers"
	"github.com/srms-platform/srms-backend/pkg/logger"
)

type customerRequest struct {
	FirstName     string  `json:"first_name" validate:"required,max=100"`
	LastName      string  `json:"last_name" validate:"required,max=100"`
	Email         string  `json:"email" validate:"required,email,max=255"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address       *string `json:"address,omitempty" validate:"omitempty,max=500"`
	LoyaltyPoints int     `json:"loyalty_points" validate:"gte=0"`
}

func (r customerRequest) toInput() customers.CustomerInput {
	return customers.CustomerInput{
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		LoyaltyPoints: r.LoyaltyPoints,
	}
}

func CustomerList(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return listResource(svc.List, logg)
}

func CustomerGet(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return getResource("id", svc.Get, logg)
}

// CustomerGetByEmail looks a customer up by address; del=true searches the
// deleted partition instead of the active one.
func CustomerGetByEmail(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		showDeleted, err := validators.ParseQueryBool(r, validators.QueryShowDeleted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.FindByEmail(r.Context(), strings.TrimSpace(chi.URLParam(r, "email")), showDeleted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func CustomerCreate(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeInto[customerRequest](w, r, logg)
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

func CustomerUpdate(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, ok := decodeInto[customerRequest](w, r, logg)
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

func CustomerDelete(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return deleteResource("id", svc.SoftDelete, logg)
}

func CustomerRestore(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return restoreResource("id", svc.Restore, logg)
}
