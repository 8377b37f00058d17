package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/ErlanBelekov/storefront/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Order lifecycle

	OrdersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "orders_created_total",
		Help:      "Total orders placed.",
	})

	OrderTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "order_transitions_total",
		Help:      "Total order status changes, by source and target status.",
	}, []string{"from", "to"})

	OrderTransitionsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "order_transitions_rejected_total",
		Help:      "Status changes refused, by reason.",
	}, []string{"reason"})

	// Access guard

	AuthFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "auth_failures_total",
		Help:      "Requests rejected by the access guard, by reason.",
	}, []string{"reason"})

	UserCacheRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "user_cache_requests_total",
		Help:      "Identity cache lookups, by result.",
	}, []string{"result"})

	// Notifier

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "notifications_total",
		Help:      "Order notifications processed, by outcome.",
	}, []string{"outcome"})

	NotifierBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "notifier_batch_duration_seconds",
		Help:      "Time taken to claim and deliver one batch of events.",
		Buckets:   prometheus.DefBuckets,
	})

	EventsRequeuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "notifier_events_requeued_total",
		Help:      "Events whose claim went stale and were handed back by the reaper.",
	})

	NotifierStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "storefront",
		Name:      "notifier_start_time_seconds",
		Help:      "Unix timestamp when the notifier started.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "storefront",
		Name:      "http_requests_in_flight",
		Help:      "Requests currently being served.",
	})
)

func Register() {
	prometheus.MustRegister(
		OrdersCreatedTotal,
		OrderTransitionsTotal,
		OrderTransitionsRejectedTotal,
		AuthFailuresTotal,
		UserCacheRequestsTotal,
		NotificationsTotal,
		NotifierBatchDuration,
		EventsRequeuedTotal,
		NotifierStartTime,
		HTTPRequestDuration,
		HTTPRequestsTotal,
		HTTPRequestsInFlight,
	)
}

// NewServer serves /metrics, /healthz and /readyz on a separate port from
// the public API.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}
