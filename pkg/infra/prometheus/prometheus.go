package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds
	latencyBuckets = []float64{
		1, 2.5, 5, // Fast scans (regex only)
		10, 25, 50, // Normal scans
		100, 250, 500, // Scans with external calls
		1000, 2500, 5000, // Slow/timeout territory
	}

	ScanTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptguard_scans_total",
			Help: "Total number of scans processed by action",
		},
		[]string{"action"},
	)

	ScanLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptguard_scan_latency_ms",
			Help:    "Scan latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"action"},
	)

	DetectorOutcomes = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptguard_detector_outcomes_total",
			Help: "Detector completions by detector and status",
		},
		[]string{"detector", "status"},
	)

	RateLimitedTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "promptguard_rate_limited_total",
			Help: "Requests rejected by the rate limit fast path",
		},
	)

	AuditDroppedTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "promptguard_audit_dropped_total",
			Help: "Audit records dropped due to queue overflow",
		},
	)
)

type MetricsConfig struct {
	EnableLatency bool // Basic latency metrics
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		EnableLatency: true,
	}
}

var Config MetricsConfig

func Initialize(cfg MetricsConfig) {
	Config = cfg
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}
