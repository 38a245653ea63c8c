package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interfaces the ml and pipeline
// packages declare, so neither imports Prometheus.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc() { w.m.MLPredictions.Inc() }

func (w *MetricsWrapper) MLFailuresInc() { w.m.MLFailures.Inc() }

func (w *MetricsWrapper) MLLatencyObserve(v float64) { w.m.MLLatency.Observe(v) }

func (w *MetricsWrapper) MLDecisionInc(label string) {
	w.m.MLDecisions.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) MLModelAgeSet(v float64) { w.m.MLModelAge.Set(v) }

func (w *MetricsWrapper) DomainErrorInc(field string) {
	w.m.DomainErrors.WithLabelValues(field).Inc()
}

func (w *MetricsWrapper) RequestLatencyObserve(v float64) { w.m.RequestLatency.Observe(v) }

func (w *MetricsWrapper) HTTPRequestInc(path string, code int) {
	w.m.HTTPRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

func (w *MetricsWrapper) WSConnectionsAdd(delta float64) { w.m.WSConnections.Add(delta) }
