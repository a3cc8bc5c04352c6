package hooks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics is a core.MetricsCollector backed by Prometheus.
type PrometheusMetrics struct {
	StepDuration *prometheus.HistogramVec
	StepErrors   *prometheus.CounterVec
	Bytes        prometheus.Counter
}

// NewPrometheusMetrics creates and registers the pipeline metrics on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docintake_pipeline_step_duration_seconds",
			Help:    "Duration of image pipeline steps",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"step"}),
		StepErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docintake_pipeline_step_errors_total",
			Help: "Failed image pipeline steps by error category",
		}, []string{"step", "category"}),
		Bytes: f.NewCounter(prometheus.CounterOpts{
			Name: "docintake_pipeline_bytes_total",
			Help: "Bytes read and written by the image pipeline",
		}),
	}
}

func (m *PrometheusMetrics) RecordProcessingTime(stepName string, d interface{ Seconds() float64 }) {
	m.StepDuration.WithLabelValues(stepName).Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordThroughput(bytes int64) {
	m.Bytes.Add(float64(bytes))
}

func (m *PrometheusMetrics) RecordError(stepName string, category string) {
	m.StepErrors.WithLabelValues(stepName, category).Inc()
}
