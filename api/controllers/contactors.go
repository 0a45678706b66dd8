package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/srms-platform/srms-backend/api/responses"
	"github.com/srms-platform/srms-backend/api/validators"
	"github.com/srms-platform/srms-backend/internal/contactors"
	"github.com/srms-platform/srms-backend/pkg/logger"
)

type contactorRequest struct {
	CompanyName string  `json:"company_name" validate:"required,max=200"`
	ContactName string  `json:"contact_name" validate:"required,max=200"`
	Email       string  `json:"email" validate:"required,email,max=255"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=500"`
	TaxCode     *string `json:"tax_code,omitempty" validate:"omitempty,max=64"`
	Note        *string `json:"note,omitempty" validate:"omitempty,max=2000"`
}

func (r contactorRequest) toInput() contactors.ContactorInput {
	return contactors.ContactorInput{
		CompanyName: r.CompanyName,
		ContactName: r.ContactName,
		Email:       r.Email,
		Phone:       r.Phone,
		Address:     r.Address,
		TaxCode:     r.TaxCode,
		Note:        r.Note,
	}
}

func ContactorList(svc contactors.Service, logg *logger.Logger) http.HandlerFunc {
	return listResource(svc.List, logg)
}

func ContactorGet(svc contactors.Service, logg *logger.Logger) http.HandlerFunc {
	return getResource("id", svc.Get, logg)
}

func ContactorGetByEmail(svc contactors.Service, logg *logger.Logger) http.HandlerFunc {
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

func ContactorCreate(svc contactors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeInto[contactorRequest](w, r, logg)
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

func ContactorUpdate(svc contactors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, ok := decodeInto[contactorRequest](w, r, logg)
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

func ContactorDelete(svc contactors.Service, logg *logger.Logger) http.HandlerFunc {
	return deleteResource("id", svc.SoftDelete, logg)
}

func ContactorRestore(svc contactors.Service, logg *logger.Logger) http.HandlerFunc {
	return restoreResource("id", svc.Restore, logg)
}
