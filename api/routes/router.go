package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srms-platform/srms-backend/api/controllers"
	"github.com/srms-platform/srms-backend/api/middleware"
	"github.com/srms-platform/srms-backend/internal/contactors"
	"github.com/srms-platform/srms-backend/internal/customers"
	"github.com/srms-platform/srms-backend/internal/warehouses"
	"github.com/srms-platform/srms-backend/pkg/cache"
	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/enums"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/messages"
	"github.com/srms-platform/srms-backend/pkg/metrics"
	pkgredis "github.com/srms-platform/srms-backend/pkg/redis"
)

// Role classes. Reads are open to every realm role, writes need staff,
// destructive lifecycle changes need a manager.
var (
	readers  = []enums.Role{enums.RoleViewer, enums.RoleStaff, enums.RoleManager, enums.RoleAdmin}
	writers  = []enums.Role{enums.RoleStaff, enums.RoleManager, enums.RoleAdmin}
	managers = []enums.Role{enums.RoleManager, enums.RoleAdmin}
	admins   = []enums.Role{enums.RoleAdmin}
)

// RouterParams carries everything the api router mounts. Idempotency and
// Gatherer are optional.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	Customers    customers.Service
	Contactors   contactors.Service
	Warehouses   warehouses.Service
	Inventory    warehouses.InventoryService
	Caches       *cache.Manager
	Idempotency  pkgredis.IdempotencyStore
	HTTPMetrics  *metrics.HTTPMetrics
	Gatherer     prometheus.Gatherer
	Dependencies []controllers.Dependency
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Locale(messages.ParseTag(cfg.App.DefaultLocale)),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Dependencies...))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(p.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.App.RequestTimeout, logg))
		r.Use(middleware.GatewayIdentity(logg))
		r.Use(middleware.Idempotency(p.Idempotency, cfg.App.IdempotencyTTL, logg))

		read := middleware.RequireRole(logg, readers...)
		write := middleware.RequireRole(logg, writers...)
		manage := middleware.RequireRole(logg, managers...)

		r.Route("/customers", func(r chi.Router) {
			r.With(read).Get("/", controllers.CustomerList(p.Customers, logg))
			r.With(read).Get("/email/{email}", controllers.CustomerGetByEmail(p.Customers, logg))
			r.With(read).Get("/{id}", controllers.CustomerGet(p.Customers, logg))
			r.With(write).Post("/", controllers.CustomerCreate(p.Customers, logg))
			r.With(write).Put("/{id}", controllers.CustomerUpdate(p.Customers, logg))
			r.With(manage).Delete("/{id}", controllers.CustomerDelete(p.Customers, logg))
			r.With(manage).Patch("/{id}/restore", controllers.CustomerRestore(p.Customers, logg))
		})

		r.Route("/contactors", func(r chi.Router) {
			r.With(read).Get("/", controllers.ContactorList(p.Contactors, logg))
			r.With(read).Get("/email/{email}", controllers.ContactorGetByEmail(p.Contactors, logg))
			r.With(read).Get("/{id}", controllers.ContactorGet(p.Contactors, logg))
			r.With(write).Post("/", controllers.ContactorCreate(p.Contactors, logg))
			r.With(write).Put("/{id}", controllers.ContactorUpdate(p.Contactors, logg))
			r.With(manage).Delete("/{id}", controllers.ContactorDelete(p.Contactors, logg))
			r.With(manage).Patch("/{id}/restore", controllers.ContactorRestore(p.Contactors, logg))
		})

		r.Route("/warehouses", func(r chi.Router) {
			r.With(read).Get("/", controllers.WarehouseList(p.Warehouses, logg))
			r.With(read).Get("/{id}", controllers.WarehouseGet(p.Warehouses, logg))
			r.With(manage).Post("/", controllers.WarehouseCreate(p.Warehouses, logg))
			r.With(manage).Put("/{id}", controllers.WarehouseUpdate(p.Warehouses, logg))
			r.With(manage).Delete("/{id}", controllers.WarehouseDelete(p.Warehouses, logg))
			r.With(manage).Patch("/{id}/restore", controllers.WarehouseRestore(p.Warehouses, logg))

			r.With(read).Get("/{warehouseId}/statistics", controllers.WarehouseStatistics(p.Warehouses, logg))
			r.With(read).Get("/{warehouseId}/items", controllers.ItemList(p.Inventory, logg))
			r.With(write).Post("/{warehouseId}/items", controllers.ItemCreate(p.Inventory, logg))
		})

		r.Route("/items/{itemId}", func(r chi.Router) {
			r.With(read).Get("/", controllers.ItemGet(p.Inventory, logg))
			r.With(write).Put("/", controllers.ItemUpdate(p.Inventory, logg))
			r.With(manage).Delete("/", controllers.ItemDelete(p.Inventory, logg))
			r.With(manage).Patch("/restore", controllers.ItemRestore(p.Inventory, logg))
			r.With(write).Post("/adjustments", controllers.ItemAdjust(p.Inventory, logg))
			r.With(read).Get("/history", controllers.ItemHistory(p.Inventory, logg))
		})

		r.Route("/admin/caches", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, admins...))
			r.Get("/", controllers.AdminCacheList(p.Caches, logg))
			r.Delete("/", controllers.AdminCacheClearAll(p.Caches, logg))
			r.Delete("/{name}", controllers.AdminCacheClear(p.Caches, logg))
		})
	})

	return r
}
