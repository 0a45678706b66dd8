package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/metrics"
)

// Set is the full collection of named caches used by the api.
type Set struct {
	Customers      Cache
	CustomerPages  Cache
	Contactors     Cache
	ContactorPages Cache
	Warehouses     Cache
	WarehousePages Cache
	Inventory      Cache
	InventoryPages Cache
	Manager        *Manager
}

// Build creates every named cache on the configured backend. A nil redis
// client with the redis backend selected is a configuration error.
func Build(cfg config.CacheConfig, client redisBackend, logg *logger.Logger, m *metrics.CacheMetrics) (*Set, error) {
	ttls := map[string]time.Duration{
		Customers:      cfg.CustomerTTL,
		CustomerPages:  cfg.PageTTL,
		Contactors:     cfg.ContactorTTL,
		ContactorPages: cfg.PageTTL,
		Warehouses:     cfg.WarehouseTTL,
		WarehousePages: cfg.PageTTL,
		Inventory:      cfg.InventoryTTL,
		InventoryPages: cfg.PageTTL,
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	built := make(map[string]Cache, len(ttls))
	for name, ttl := range ttls {
		var c Cache
		switch backend {
		case "redis":
			if client == nil {
				return nil, fmt.Errorf("cache backend redis requires a redis client")
			}
			rc, err := NewRedisCache(client, name, ttl)
			if err != nil {
				return nil, err
			}
			c = rc
		case "memory", "":
			c = NewMemoryCache(name, ttl)
		default:
			return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
		}
		built[name] = Instrument(c, logg, m)
	}

	set := &Set{
		Customers:      built[Customers],
		CustomerPages:  built[CustomerPages],
		Contactors:     built[Contactors],
		ContactorPages: built[ContactorPages],
		Warehouses:     built[Warehouses],
		WarehousePages: built[WarehousePages],
		Inventory:      built[Inventory],
		InventoryPages: built[InventoryPages],
	}
	set.Manager = NewManager(
		set.Customers, set.CustomerPages,
		set.Contactors, set.ContactorPages,
		set.Warehouses, set.WarehousePages,
		set.Inventory, set.InventoryPages,
	)
	return set, nil
}
