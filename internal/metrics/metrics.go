package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jameskimau/inbox-rules/internal/logger"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxrules_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inboxrules_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		},
		[]string{"method", "route"},
	)
)

// Rule metrics
var (
	SimulationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxrules_simulations_total",
			Help: "Total number of simulations by outcome",
		},
		[]string{"result"},
	)

	RulesMatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inboxrules_rules_matched_total",
			Help: "Total number of rule matches across all simulations",
		},
	)

	RuleMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxrules_rule_mutations_total",
			Help: "Total number of rule mutations by operation",
		},
		[]string{"operation"},
	)
)

// Auth metrics
var (
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxrules_login_attempts_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)
)

// Logger counters, exported as-is
var (
	_ = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "inboxrules_log_errors_total",
			Help: "Total number of error-level log events, including sampled-out ones",
		},
		func() float64 { return float64(logger.TotalErrors.Load()) },
	)

	_ = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "inboxrules_log_warnings_total",
			Help: "Total number of warning-level log events, including sampled-out ones",
		},
		func() float64 { return float64(logger.TotalWarnings.Load()) },
	)

	http5xxResponses = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "inboxrules_http_5xx_responses_total",
			Help: "Total number of HTTP 5xx responses",
		},
		func() float64 { return float64(logger.Total5xxErrors.Load()) },
	)

	http4xxResponses = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "inboxrules_http_4xx_responses_total",
			Help: "Total number of HTTP 4xx responses",
		},
		func() float64 { return float64(logger.Total4xxErrors.Load()) },
	)

	http400Responses = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "inboxrules_http_client_errors_total",
			Help:        "Total number of HTTP client error responses by status",
			ConstLabels: prometheus.Labels{"status": "400"},
		},
		func() float64 { return float64(logger.Total400Errors.Load()) },
	)

	http401Responses = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "inboxrules_http_client_errors_total",
			Help:        "Total number of HTTP client error responses by status",
			ConstLabels: prometheus.Labels{"status": "401"},
		},
		func() float64 { return float64(logger.Total401Errors.Load()) },
	)

	http404Responses = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "inboxrules_http_client_errors_total",
			Help:        "Total number of HTTP client error responses by status",
			ConstLabels: prometheus.Labels{"status": "404"},
		},
		func() float64 { return float64(logger.Total404Errors.Load()) },
	)
)

// RecordSimulation counts one simulation and its matches
func RecordSimulation(matchedRules int) {
	result := "unmatched"
	if matchedRules > 0 {
		result = "matched"
	}
	SimulationsTotal.WithLabelValues(result).Inc()
	RulesMatchedTotal.Add(float64(matchedRules))
}
