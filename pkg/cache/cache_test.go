package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/metrics"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

type entry struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func TestKeyIsPureAndVisibilityAware(t *testing.T) {
	id := uuid.MustParse("7b0c6c0e-51c4-4a0e-9d83-0c1a8f6b2d11")
	assert.Equal(t, "byId:7b0c6c0e-51c4-4a0e-9d83-0c1a8f6b2d11", Key("byId", id))
	assert.Equal(t, Key("byEmail", "A@Example.com ", false), Key("byEmail", "a@example.com", false))
	assert.Equal(t, "byEmail:a@example.com:active", Key("byEmail", "a@example.com", false))
	assert.NotEqual(t, Key("byEmail", "a@example.com", false), Key("byEmail", "a@example.com", true))

	page := pagination.NewPageRequest(1, 20, "email", "asc")
	assert.Equal(t, "page:p=1,s=20,sb=email,o=ASC:deleted", Key("page", page, true))
	assert.Equal(t, "op:-", Key("op", nil))
}

func TestGetOrLoadCachesFoundValuesOnly(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(Customers, time.Minute)
	calls := 0
	load := func(context.Context) (*entry, bool, error) {
		calls++
		return &entry{ID: "1", Email: "a@example.com"}, true, nil
	}

	first, found, err := GetOrLoad(ctx, c, "byId:1", load)
	require.NoError(t, err)
	require.True(t, found)
	second, _, err := GetOrLoad(ctx, c, "byId:1", load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	missing := func(context.Context) (*entry, bool, error) { return nil, false, nil }
	_, found, err = GetOrLoad(ctx, c, "byId:2", missing)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, c.Len())

	boom := errors.New("db down")
	_, _, err = GetOrLoad(ctx, c, "byId:3", func(context.Context) (*entry, bool, error) { return nil, false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestGetOrLoadWithNilCache(t *testing.T) {
	v, found, err := GetOrLoad(context.Background(), nil, "k", func(context.Context) (int, bool, error) { return 7, true, nil })
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, v)
	Evict(context.Background(), nil, "k")
	Clear(context.Background(), nil)
}

func TestMemoryCacheExpiresEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(Warehouses, time.Minute)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Put(ctx, "k", entry{ID: "1"}))
	var got entry
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestManagerClear(t *testing.T) {
	ctx := context.Background()
	customers := NewMemoryCache(Customers, 0)
	contactors := NewMemoryCache(Contactors, 0)
	m := NewManager(customers, contactors, nil)
	require.NoError(t, customers.Put(ctx, "a", 1))
	require.NoError(t, contactors.Put(ctx, "b", 2))

	assert.Equal(t, []string{Contactors, Customers}, m.Names())

	require.NoError(t, m.Clear(ctx, Customers))
	assert.Equal(t, 0, customers.Len())
	assert.Equal(t, 1, contactors.Len())

	err := m.Clear(ctx, "nope")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	require.NoError(t, m.ClearAll(ctx))
	assert.Equal(t, 0, contactors.Len())
}

type failingCache struct{ *MemoryCache }

func (f failingCache) EvictAll(context.Context) error { return errors.New("redis gone") }

func TestManagerClearAllAttemptsEveryCache(t *testing.T) {
	ctx := context.Background()
	healthy := NewMemoryCache(Customers, 0)
	require.NoError(t, healthy.Put(ctx, "a", 1))
	m := NewManager(failingCache{NewMemoryCache(Contactors, 0)}, healthy)

	err := m.ClearAll(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
	assert.Equal(t, 0, healthy.Len())
}

type fakeRedis struct {
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = v.(string)
	}
	f.ttl[key] = ttl
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) DeleteByPrefix(_ context.Context, prefix string) (int64, error) {
	var n int64
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeRedis) CacheKey(cache, key string) string { return "srms:cache:" + cache + ":" + key }
func (f *fakeRedis) CachePrefix(cache string) string   { return "srms:cache:" + cache + ":" }

func TestRedisCacheRoundTripAndNamespacing(t *testing.T) {
	ctx := context.Background()
	backend := newFakeRedis()
	customers, err := NewRedisCache(backend, Customers, 10*time.Minute)
	require.NoError(t, err)
	pages, err := NewRedisCache(backend, CustomerPages, 30*time.Second)
	require.NoError(t, err)

	require.NoError(t, customers.Put(ctx, "byId:1", entry{ID: "1", Email: "a@example.com"}))
	require.NoError(t, pages.Put(ctx, "page:1", []entry{{ID: "1"}}))
	assert.Equal(t, 10*time.Minute, backend.ttl["srms:cache:customers:byId:1"])

	var got entry
	ok, err := customers.Get(ctx, "byId:1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", got.Email)

	ok, err = customers.Get(ctx, "byId:404", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, pages.EvictAll(ctx))
	assert.Len(t, backend.data, 1)

	require.NoError(t, customers.Evict(ctx, "byId:1"))
	assert.Empty(t, backend.data)
}

func TestInstrumentedCacheRecordsAndLogsFailures(t *testing.T) {
	ctx := context.Background()
	backend := newFakeRedis()
	rc, err := NewRedisCache(backend, Customers, time.Minute)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	c := Instrument(rc, logger.Nop(), metrics.NewCacheMetrics(reg))

	var got entry
	ok, err := c.Get(ctx, "byId:1", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	backend.err = errors.New("connection refused")
	_, err = c.Get(ctx, "byId:1", &got)
	require.Error(t, err)

	// GetOrLoad falls through to the loader when the backend fails.
	v, found, err := GetOrLoad(ctx, c, "byId:1", func(context.Context) (entry, bool, error) {
		return entry{ID: "1"}, true, nil
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", v.ID)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["srms_cache_misses_total"])
	assert.True(t, names["srms_cache_errors_total"])
}
