package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/srms-platform/srms-backend/api/responses"
	"github.com/srms-platform/srms-backend/pkg/config"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/messages"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(context.Context) error
}

// Dependency is one readiness probe target. A nil Pinger is reported as
// disabled rather than failing.
type Dependency struct {
	Name   string
	Pinger pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SRMS-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and fails with 503 when any is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps ...Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SRMS-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		for _, dep := range deps {
			if dep.Pinger == nil {
				checks[dep.Name] = "disabled"
				continue
			}
			if err := dep.Pinger.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrapk(pkgerrors.CodeDependency, err, messages.DependencyFailed, dep.Name).
						WithDetails(map[string]string{"dependency": dep.Name}))
				return
			}
			checks[dep.Name] = "ok"
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
