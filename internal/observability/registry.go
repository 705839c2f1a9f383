package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// This replaces direct access to global Prometheus metrics with dependency
// injection, so logic packages stay testable without a live registry.
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Selection metrics
	IncrementSelections(placement, result string)
	IncrementCampaignSkips(reason string)

	// Event tracking metrics
	IncrementEvent(eventType string)
	IncrementEventDrops(eventType string)

	// Snapshot reload metrics
	IncrementReloads(outcome string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry.
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementSelections(placement, result string) {
	SelectionCount.WithLabelValues(placement, result).Inc()
}

func (r *PrometheusRegistry) IncrementCampaignSkips(reason string) {
	CampaignSkipCount.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) IncrementEvent(eventType string) {
	EventCount.WithLabelValues(eventType).Inc()
}

func (r *PrometheusRegistry) IncrementEventDrops(eventType string) {
	EventDropCount.WithLabelValues(eventType).Inc()
}

func (r *PrometheusRegistry) IncrementReloads(outcome string) {
	ReloadCount.WithLabelValues(outcome).Inc()
}
