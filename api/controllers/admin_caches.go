package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/srms-platform/srms-backend/api/middleware"
	"github.com/srms-platform/srms-backend/api/responses"
	"github.com/srms-platform/srms-backend/pkg/logger"
)

type cacheAdmin interface {
	Names() []string
	ClearAll(ctx context.Context) error
	Clear(ctx context.Context, name string) error
}

type cacheClearResponse struct {
	Cleared []string `json:"cleared"`
}

// AdminCacheList names every cache that can be cleared.
func AdminCacheList(caches cacheAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string][]string{"caches": caches.Names()})
	}
}

// AdminCacheClearAll empties every named cache. The store stays the source
// of truth, so this is always safe and only costs warm-up reads.
func AdminCacheClearAll(caches cacheAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := caches.ClearAll(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithField(r.Context(), "actor", middleware.SubjectFromContext(r.Context()))
		logg.Info(ctx, "cache.cleared_all")
		responses.WriteSuccess(w, cacheClearResponse{Cleared: caches.Names()})
	}
}

func AdminCacheClear(caches cacheAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "name"))
		if err := caches.Clear(r.Context(), name); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithFields(r.Context(), map[string]any{
			"actor": middleware.SubjectFromContext(r.Context()),
			"cache": name,
		})
		logg.Info(ctx, "cache.cleared")
		responses.WriteSuccess(w, cacheClearResponse{Cleared: []string{name}})
	}
}
