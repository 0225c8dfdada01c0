package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coindash_polls_total",
		Help: "Price polls by result.",
	}, []string{"result"})

	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "coindash_backend_request_duration_seconds",
		Help: "Duration of requests to the price backend and market sources.",
	}, []string{"endpoint", "result"})

	HistoryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coindash_history_cache_hits_total",
		Help: "Market history responses served from cache.",
	})

	StaleResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coindash_stale_results_total",
		Help: "History loads discarded because a newer selection superseded them.",
	})

	ChartRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coindash_chart_renders_total",
		Help: "Charts rendered by kind.",
	}, []string{"kind"})

	AlertsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coindash_alerts_fired_total",
		Help: "Alert notifications raised by the poller.",
	})

	AlertSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coindash_alert_submissions_total",
		Help: "Alert threshold submissions by result.",
	}, []string{"result"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coindash_stream_clients",
		Help: "Connected SSE and WebSocket clients.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "coindash_http_request_duration_seconds",
		Help: "Duration of dashboard API requests.",
	}, []string{"route"})
)

// Handler serves the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveBackend records one backend request.
func ObserveBackend(endpoint string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	BackendRequestDuration.WithLabelValues(endpoint, result).Observe(time.Since(start).Seconds())
}

// Middleware records request durations by chi route pattern. Streaming
// endpoints are skipped since their duration is the connection lifetime.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/events" || r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		next.ServeHTTP(w, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
