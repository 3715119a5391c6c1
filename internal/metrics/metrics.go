package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vessel_notify"

// Registry holds every collector the service exposes on /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// NotificationsIngested counts webhook calls by kind and outcome (stored|failed|rejected).
var NotificationsIngested = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_ingested_total",
		Help:      "Webhook notifications received, by kind and outcome",
	},
	[]string{"kind", "outcome"},
)

var ScreeningInFlight = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "screening_sessions_in_flight",
		Help:      "Screening sessions currently running",
	},
)

// ScreeningOutcomes counts finished sessions by terminal state.
var ScreeningOutcomes = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screening_sessions_total",
		Help:      "Finished screening sessions, by terminal state",
	},
	[]string{"state"},
)

// ScreeningPolls counts poll attempts by result (pending|terminal|empty|error).
var ScreeningPolls = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screening_poll_attempts_total",
		Help:      "Screening provider poll attempts, by result",
	},
	[]string{"result"},
)

var StreamSubscribers = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_subscribers",
		Help:      "Live stream subscribers registered with the hub",
	},
)

// StreamMessages counts hub deliveries by message type.
var StreamMessages = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_messages_total",
		Help:      "Messages enqueued to subscriber outboxes, by message type",
	},
	[]string{"type"},
)

var StreamEvictions = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_evictions_total",
		Help:      "Subscribers disconnected because their outbox was full",
	},
)

var StreamRejections = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_rejections_total",
		Help:      "Subscriptions refused because the hub was at capacity",
	},
)

// HTTPRequestDuration tracks handler latency by route pattern and status code.
var HTTPRequestDuration = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"method", "route", "status"},
)
