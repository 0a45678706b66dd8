package cache

import (
	"context"

	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/metrics"
)

type instrumented struct {
	inner   Cache
	logg    *logger.Logger
	metrics *metrics.CacheMetrics
}

// Instrument records hits, misses and backend failures for c and logs
// failures at warn level. Errors are still returned to the caller.
func Instrument(c Cache, logg *logger.Logger, m *metrics.CacheMetrics) Cache {
	if c == nil {
		return nil
	}
	return &instrumented{inner: c, logg: logg, metrics: m}
}

func (i *instrumented) Name() string { return i.inner.Name() }

func (i *instrumented) Get(ctx context.Context, key string, dest any) (bool, error) {
	ok, err := i.inner.Get(ctx, key, dest)
	switch {
	case err != nil:
		i.fail(ctx, "get", key, err)
	case ok:
		i.metrics.Hit(i.inner.Name())
	default:
		i.metrics.Miss(i.inner.Name())
	}
	return ok, err
}

func (i *instrumented) Put(ctx context.Context, key string, value any) error {
	err := i.inner.Put(ctx, key, value)
	if err != nil {
		i.fail(ctx, "put", key, err)
	}
	return err
}

func (i *instrumented) Evict(ctx context.Context, keys ...string) error {
	err := i.inner.Evict(ctx, keys...)
	if err != nil {
		i.fail(ctx, "evict", "", err)
		return err
	}
	i.metrics.Evicted(i.inner.Name(), "key")
	return nil
}

func (i *instrumented) EvictAll(ctx context.Context) error {
	err := i.inner.EvictAll(ctx)
	if err != nil {
		i.fail(ctx, "evict_all", "", err)
		return err
	}
	i.metrics.Evicted(i.inner.Name(), "all")
	return nil
}

func (i *instrumented) fail(ctx context.Context, op, key string, err error) {
	i.metrics.Error(i.inner.Name(), op)
	if i.logg == nil {
		return
	}
	fields := map[string]any{"cache": i.inner.Name(), "op": op, "error": err.Error()}
	if key != "" {
		fields["key"] = key
	}
	i.logg.Warn(i.logg.WithFields(ctx, fields), "cache.operation_failed")
}
