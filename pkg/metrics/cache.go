package metrics

import "github.com/prometheus/client_golang/prometheus"

// Cache read outcomes.
const (
	CacheHit          = "hit"
	CacheMiss         = "miss"
	CacheFallback     = "fallback"
	CachePassthrough  = "passthrough"
	CacheRefreshOK    = "refresh_ok"
	CacheRefreshError = "refresh_error"

	// CacheRefreshStoreError counts refreshes whose fetch succeeded but
	// whose snapshot could not be written.
	CacheRefreshStoreError = "refresh_store_error"
)

// CacheMetrics counts cache-aside read outcomes per resource.
type CacheMetrics struct {
	reads *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	if reg == nil {
		return &CacheMetrics{}
	}
	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skydesk_cache_reads_total",
		Help: "Cache-aside read outcomes by resource.",
	}, []string{"resource", "outcome"})
	reg.MustRegister(reads)
	return &CacheMetrics{reads: reads}
}

func (m *CacheMetrics) Inc(resource, outcome string) {
	if m == nil || m.reads == nil {
		return
	}
	m.reads.WithLabelValues(normalizeLabel(resource), outcome).Inc()
}
