package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
)

// PredictionMetrics tracks classification outcomes.
type PredictionMetrics struct {
	Outcomes           *prometheus.CounterVec
	UnrecognizedLabels prometheus.Counter
	Duration           prometheus.Histogram
	BatchItems         *prometheus.CounterVec
}

func NewPredictionMetrics(reg prometheus.Registerer) *PredictionMetrics {
	m := &PredictionMetrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of predictions, by outcome and sentiment.",
		}, []string{"outcome", "sentiment"}),
		UnrecognizedLabels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unrecognized_labels_total",
			Help:      "Total number of classifier labels that fell through to neutral.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Duration of single predictions in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		BatchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Total number of batch items, by disposition.",
		}, []string{"disposition"}),
	}

	reg.MustRegister(m.Outcomes, m.UnrecognizedLabels, m.Duration, m.BatchItems)
	return m
}

func (m *PredictionMetrics) PredictionCompleted(o domain.Outcome, d time.Duration) {
	m.Outcomes.WithLabelValues(o.Kind.String(), string(o.Prediction.Sentiment)).Inc()
	m.Duration.Observe(d.Seconds())
}

func (m *PredictionMetrics) LabelUnrecognized(string) {
	m.UnrecognizedLabels.Inc()
}

func (m *PredictionMetrics) BatchCompleted(received, analyzed int) {
	m.BatchItems.WithLabelValues("analyzed").Add(float64(analyzed))
	m.BatchItems.WithLabelValues("skipped").Add(float64(received - analyzed))
}
