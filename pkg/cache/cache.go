// Package cache is the explicit cache port used by the services. Keys are
// built by Key, a pure function of operation name and arguments, and every
// named cache carries its own TTL.
package cache

import (
	"context"
	"fmt"
	"strings"
)

// Named caches. Entity caches hold single rows; page caches hold list
// results and are cleared wholesale on any write to the module.
const (
	Customers      = "customers"
	CustomerPages  = "customer-pages"
	Contactors     = "contactors"
	ContactorPages = "contactor-pages"
	Warehouses     = "warehouses"
	WarehousePages = "warehouse-pages"
	Inventory      = "inventory"
	InventoryPages = "inventory-pages"
)

// Cache stores JSON-serializable values under string keys.
type Cache interface {
	Name() string
	// Get decodes the cached value into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Put(ctx context.Context, key string, value any) error
	Evict(ctx context.Context, keys ...string) error
	EvictAll(ctx context.Context) error
}

// Key joins an operation name and its arguments into a cache key.
// Equal inputs always produce equal keys.
func Key(op string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, op)
	for _, arg := range args {
		parts = append(parts, keyPart(arg))
	}
	return strings.Join(parts, ":")
}

func keyPart(arg any) string {
	switch v := arg.(type) {
	case nil:
		return "-"
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case bool:
		if v {
			return "deleted"
		}
		return "active"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// GetOrLoad serves key from c, calling load on a miss and caching what it
// finds. Absent results are not cached. Cache failures never fail the call;
// wrap c with Instrument to have them logged.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, load func(context.Context) (T, bool, error)) (T, bool, error) {
	if c != nil {
		var cached T
		if ok, err := c.Get(ctx, key, &cached); err == nil && ok {
			return cached, true, nil
		}
	}
	value, found, err := load(ctx)
	if err != nil || !found {
		return value, found, err
	}
	if c != nil {
		_ = c.Put(ctx, key, value)
	}
	return value, true, nil
}

// Evict removes keys from c, ignoring a nil cache.
func Evict(ctx context.Context, c Cache, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	_ = c.Evict(ctx, keys...)
}

// Clear empties c, ignoring a nil cache.
func Clear(ctx context.Context, c Cache) {
	if c == nil {
		return
	}
	_ = c.EvictAll(ctx)
}
