package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
)

// LoaderMetrics tracks the model resource lifecycle.
type LoaderMetrics struct {
	*CacheMetrics

	State            *prometheus.GaugeVec
	Downloads        *prometheus.CounterVec
	DownloadDuration prometheus.Histogram
	StageDuration    *prometheus.HistogramVec
}

func NewLoaderMetrics(reg prometheus.Registerer) *LoaderMetrics {
	m := &LoaderMetrics{
		CacheMetrics: NewCacheMetrics(reg),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "state",
			Help:      "Current loader state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "downloads_total",
			Help:      "Total number of artifact download attempts, by result.",
		}, []string{"result"}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "download_duration_seconds",
			Help:      "Duration of a single artifact download attempt in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "stage_duration_seconds",
			Help:      "Duration of loader stages in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"stage"}),
	}

	reg.MustRegister(m.State, m.Downloads, m.DownloadDuration, m.StageDuration)
	m.StateChanged(domain.StateUninitialized)
	return m
}

func (m *LoaderMetrics) StateChanged(state domain.LoaderState) {
	for _, s := range domain.LoaderStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(string(s)).Set(v)
	}
}

func (m *LoaderMetrics) DownloadAttempted(_ string, err error, d time.Duration) {
	m.Downloads.WithLabelValues(downloadResult(err)).Inc()
	m.DownloadDuration.Observe(d.Seconds())
}

func (m *LoaderMetrics) StageCompleted(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func downloadResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrArtifactNotFound):
		return "not_found"
	default:
		return "error"
	}
}
