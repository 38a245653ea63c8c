// Package metrics provides Prometheus metrics collection for the loan
// prediction service. It defines the prediction, validation and transport
// metrics exposed on the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	MLPredictions prometheus.Counter     // Total number of successful predictions
	MLFailures    prometheus.Counter     // Total number of failed predictions
	MLDecisions   *prometheus.CounterVec // Predictions by label
	MLModelAge    prometheus.Gauge       // Age of the loaded model artifact in seconds
	MLLatency     prometheus.Histogram   // Classifier latency in seconds

	// Validation metrics
	DomainErrors *prometheus.CounterVec // Rejected fields by column name

	// Request metrics
	RequestLatency prometheus.Histogram   // End-to-end pipeline latency in seconds
	HTTPRequests   *prometheus.CounterVec // HTTP requests by path and status code
	WSConnections  prometheus.Gauge       // Open interactive form connections
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of successful loan predictions",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of failed loan predictions",
		}),
		MLDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_decisions_total",
			Help: "Loan predictions by label",
		}, []string{"label"}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Classifier latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		DomainErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domain_errors_total",
			Help: "Applicant fields rejected at validation",
		}, []string{"field"}),
		RequestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_request_seconds",
			Help:    "End-to-end prediction pipeline latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by path and status code",
		}, []string{"path", "code"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Open interactive form connections",
		}),
	}
}

// ApprovalRate returns the share of approvals among all labelled
// predictions, or 0 before the first prediction.
func (m *Metrics) ApprovalRate(g prometheus.Gatherer) float64 {
	families, err := g.Gather()
	if err != nil {
		return 0
	}

	var approved, total float64
	for _, mf := range families {
		if mf.GetName() != "ml_decisions_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			v := metric.GetCounter().GetValue()
			total += v
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "label" && lp.GetValue() == "Approved" {
					approved += v
				}
			}
		}
	}

	if total == 0 {
		return 0
	}
	return approved / total
}
