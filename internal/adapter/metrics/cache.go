package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds Prometheus metrics for the local model cache.
type CacheMetrics struct {
	Hits         prometheus.Counter
	Misses       prometheus.Counter
	MissingFiles prometheus.Gauge
}

// NewCacheMetrics creates and registers cache metrics on the given registry.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model_cache",
			Name:      "hits_total",
			Help:      "Total number of loader runs that found a complete model cache.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model_cache",
			Name:      "misses_total",
			Help:      "Total number of loader runs that had to download the model.",
		}),
		MissingFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model_cache",
			Name:      "missing_files",
			Help:      "Number of required model files absent at the last cache check.",
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.MissingFiles)
	return m
}

func (m *CacheMetrics) CacheChecked(missing int) {
	if missing == 0 {
		m.Hits.Inc()
	} else {
		m.Misses.Inc()
	}
	m.MissingFiles.Set(float64(missing))
}
