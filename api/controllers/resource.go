package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/srms-platform/srms-backend/api/responses"
	"github.com/srms-platform/srms-backend/api/validators"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

// The soft-delete lifecycle is identical across modules, so its handlers
// are built once from service method values.

type deleteResponse struct {
	ID      uuid.UUID `json:"id"`
	Deleted bool      `json:"deleted"`
}

func listResource[T any](list func(context.Context, pagination.PageRequest, bool) (pagination.Page[T], error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, showDeleted, err := validators.ParseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := list(r.Context(), req, showDeleted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// getResource serves GET /{param}. Only active rows are visible unless the
// caller passes del=true.
func getResource[T any](param string, get func(context.Context, uuid.UUID, bool) (*T, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		showDeleted, err := validators.ParseQueryBool(r, validators.QueryShowDeleted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := get(r.Context(), id, showDeleted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// deleteResource reports whether the call changed anything; repeating a
// delete is a successful no-op.
func deleteResource(param string, del func(context.Context, uuid.UUID) (bool, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		changed, err := del(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deleteResponse{ID: id, Deleted: changed})
	}
}

func restoreResource[T any](param string, restore func(context.Context, uuid.UUID) (*T, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := restore(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// decodeInto decodes and validates the body. On failure the error response
// is already written and ok is false.
func decodeInto[R any](w http.ResponseWriter, r *http.Request, logg *logger.Logger) (R, bool) {
	var req R
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return req, false
	}
	return req, true
}
