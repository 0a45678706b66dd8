package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics tracks hit ratio and backend failures per named cache.
type CacheMetrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	failures  *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	if reg == nil {
		return &CacheMetrics{}
	}
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "srms_cache_hits_total",
		Help: "Cache lookups served from the cache.",
	}, []string{"cache"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "srms_cache_misses_total",
		Help: "Cache lookups that fell through to the database.",
	}, []string{"cache"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "srms_cache_errors_total",
		Help: "Cache backend errors, by operation.",
	}, []string{"cache", "op"})
	evictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "srms_cache_evictions_total",
		Help: "Explicit evictions, by kind (key or all).",
	}, []string{"cache", "kind"})
	reg.MustRegister(hits, misses, failures, evictions)
	return &CacheMetrics{hits: hits, misses: misses, failures: failures, evictions: evictions}
}

func (m *CacheMetrics) Hit(cache string) {
	if m == nil || m.hits == nil {
		return
	}
	m.hits.WithLabelValues(normalizeLabel(cache)).Inc()
}

func (m *CacheMetrics) Miss(cache string) {
	if m == nil || m.misses == nil {
		return
	}
	m.misses.WithLabelValues(normalizeLabel(cache)).Inc()
}

func (m *CacheMetrics) Error(cache, op string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(cache), normalizeLabel(op)).Inc()
}

func (m *CacheMetrics) Evicted(cache, kind string) {
	if m == nil || m.evictions == nil {
		return
	}
	m.evictions.WithLabelValues(normalizeLabel(cache), normalizeLabel(kind)).Inc()
}
