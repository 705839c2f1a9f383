package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promoserve_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promoserve_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// selection outcomes per placement (filled / empty)
	SelectionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promoserve_selections_total",
			Help: "Total selection requests by placement and result",
		},
		[]string{"placement", "result"},
	)

	// engagement events recorded, labelled by type
	EventCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promoserve_events_total",
			Help: "Total engagement events recorded",
		},
		[]string{"type"},
	)

	// events dropped after retry exhaustion, labelled by type
	EventDropCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promoserve_event_drops_total",
			Help: "Total engagement events dropped after retries",
		},
		[]string{"type"},
	)

	// campaigns skipped during selection, labelled by reason
	CampaignSkipCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promoserve_campaign_skips_total",
			Help: "Total campaigns skipped during selection",
		},
		[]string{"reason"},
	)

	// snapshot reloads, labelled by outcome
	ReloadCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promoserve_reloads_total",
			Help: "Total campaign snapshot reloads",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		SelectionCount,
		EventCount,
		EventDropCount,
		CampaignSkipCount,
		ReloadCount,
	)
}
