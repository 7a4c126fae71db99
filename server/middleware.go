package server

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubsync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hubsync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	syncOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubsync_sync_outcomes_total",
			Help: "Contact sync outcomes by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(syncOutcomesTotal)
}

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

func applyMiddlewares(handler http.Handler, middlewares []Middleware) http.Handler {
	wrapped := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(body []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(body)
	r.size += n
	return n, err
}

func requestLogMiddleware(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Printf("http request method=%s path=%s status=%d duration_ms=%d bytes=%d", r.Method, r.URL.Path, status, time.Since(start).Milliseconds(), rec.size)
		})
	}
}

// routeLabel collapses request paths onto their route patterns so metric
// label cardinality stays bounded regardless of how many contact ids pass
// through the test-sync endpoint.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/test/sync/") {
		return "/test/sync/{contactId}"
	}
	switch path {
	case "/", "/health", "/webhooks/hubspot", "/test/connection", "/metrics":
		return path
	}
	return "unmatched"
}

func metricsMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			path := routeLabel(r.URL.Path)
			httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
