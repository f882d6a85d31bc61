package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitrelay_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitrelay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CompletionCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitrelay_completion_calls_total",
			Help: "Total chat-completion API calls by phase and outcome.",
		},
		[]string{"phase", "outcome"},
	)

	ToolDispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitrelay_tool_dispatches_total",
			Help: "Total tool dispatch attempts by tool name and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	TurnsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitrelay_turns_processed_total",
			Help: "Total conversation turns processed by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CompletionCallsTotal,
		ToolDispatchesTotal,
		TurnsProcessedTotal,
	)
}
