package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds
	latencyBuckets = []float64{
		1, 5, 10, 25,
		50, 100, 250,
		500, 1000, 2500,
	}

	SanitizerResultsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustboundary_sanitizer_results_total",
			Help: "Sanitized inputs by resulting risk level",
		},
		[]string{"risk_level", "blocked"},
	)

	RateLimitDecisionsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustboundary_ratelimit_decisions_total",
			Help: "Rate limit decisions by action and outcome (allowed, denied, fail_open)",
		},
		[]string{"action", "outcome"},
	)

	UploadValidationsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustboundary_upload_validations_total",
			Help: "Upload content-type validations by outcome and detected type",
		},
		[]string{"outcome", "detected"},
	)

	RequestLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustboundary_request_latency_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"route", "status"},
	)
)

type MetricsConfig struct {
	EnableLatency bool // request latency histogram
	EnableProcess bool // process collector (cpu, fds, memory)
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		EnableLatency: true,
		EnableProcess: true,
	}
}

var (
	Config      = DefaultMetricsConfig()
	processOnce sync.Once
)

// Initialize may be called more than once; the process collector is
// registered at most once.
func Initialize(cfg MetricsConfig) {
	Config = cfg
	if cfg.EnableProcess {
		processOnce.Do(func() {
			registry.MustRegister(
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		})
	}

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}

// Handler serves the private registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func Gatherer() prometheus.Gatherer {
	return registry
}
