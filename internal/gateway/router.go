package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srms-platform/srms-backend/api/controllers"
	"github.com/srms-platform/srms-backend/api/middleware"
	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/messages"
	"github.com/srms-platform/srms-backend/pkg/metrics"
)

type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	Gateway      http.Handler
	HTTPMetrics  *metrics.HTTPMetrics
	Gatherer     prometheus.Gatherer
	Dependencies []controllers.Dependency
}

// NewRouter mounts the gateway behind the shared edge middleware. Health and
// metrics are answered locally; everything else is proxied.
func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.Gateway.AllowedOrigins),
		middleware.Locale(messages.ParseTag(cfg.App.DefaultLocale)),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
	)

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, p.Dependencies...))
	if p.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(p.Gatherer))
	}
	r.Handle("/*", p.Gateway)
	return r
}
