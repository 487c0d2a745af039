package metrics

import "github.com/prometheus/client_golang/prometheus"

var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"endpoint", "status", "method"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "method"},
)

var HTTPRateLimitRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "http_rate_limit_rejections_total",
		Help: "Total number of HTTP requests rejected due to rate limiting",
	},
)

var EventsIngestedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "events_ingested_total",
		Help: "Events written to the event store, by outcome",
	},
	[]string{"source", "status"},
)

var IdempotentReplaysTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "idempotent_replays_total",
		Help: "Requests answered from a stored idempotency record",
	},
)

var CacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Cache lookups by result (hit, miss, corrupt, error)",
	},
	[]string{"result"},
)

var FanoutFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fanout_failures_total",
		Help: "Failed fan-out steps after a successful event write",
	},
	[]string{"step"},
)

var StreamConnections = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "stream_connections",
		Help: "Open server-sent event streams",
	},
	[]string{"scope"},
)

var WorkflowRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "workflow_runs_total",
		Help: "Event workflow executions by outcome",
	},
	[]string{"status"},
)

var WebhookDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Outbound webhook deliveries by outcome",
	},
	[]string{"status"},
)

var WebhookDeliveryDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "webhook_delivery_duration_seconds",
		Help:    "Duration of outbound webhook deliveries",
		Buckets: prometheus.DefBuckets,
	},
)

var PushDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_deliveries_total",
		Help: "Browser push deliveries by outcome (success, failed, expired)",
	},
	[]string{"status"},
)

var RetentionDeletionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "retention_deletions_total",
		Help: "Rows hard-deleted by the retention sweep",
	},
	[]string{"entity"},
)

func InitAPIMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRateLimitRejectionsTotal)
	prometheus.MustRegister(EventsIngestedTotal)
	prometheus.MustRegister(IdempotentReplaysTotal)
	prometheus.MustRegister(CacheRequestsTotal)
	prometheus.MustRegister(FanoutFailuresTotal)
	prometheus.MustRegister(StreamConnections)
}

func InitWorkerMetrics() {
	prometheus.MustRegister(WorkflowRunsTotal)
	prometheus.MustRegister(WebhookDeliveriesTotal)
	prometheus.MustRegister(WebhookDeliveryDuration)
	prometheus.MustRegister(PushDeliveriesTotal)
}

func InitRetentionMetrics() {
	prometheus.MustRegister(RetentionDeletionsTotal)
}
