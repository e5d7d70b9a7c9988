package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey string

const (
	routeLabelKey   ctxKey = "metrics_route"
	requestIDCtxKey ctxKey = "metrics_request_id"
)

// Toggle outcomes recorded by ObserveToggle.
const (
	ToggleCompleted   = "completed"
	ToggleUncompleted = "uncompleted"
	ToggleConflict    = "conflict"
	ToggleError       = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habitplanner_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habitplanner_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "habitplanner_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "habitplanner_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})

	togglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habitplanner_completion_toggles_total",
		Help: "Completion toggles by outcome.",
	}, []string{"result"})

	conflictRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "habitplanner_conflict_retries_total",
		Help: "Habit mutations retried after losing a concurrent write.",
	})
)

// route holds the matched chi pattern. chi only knows it after routing, so
// the middleware stores a pointer and fills it in once the handler returns.
type route struct {
	pattern string
}

// Middleware records request metrics and enriches the context with labels for downstream instrumentation.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			label := &route{}
			ctx := context.WithValue(r.Context(), routeLabelKey, label)
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				ctx = context.WithValue(ctx, requestIDCtxKey, reqID)
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			label.pattern = routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(r.Method, label.pattern).Inc()
			httpRequestDuration.WithLabelValues(r.Method, label.pattern, statusCode).Observe(time.Since(start).Seconds())
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(r.Method, label.pattern, statusCode).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDBLatency records database latency for a given operation, associating it with request labels when available.
func ObserveDBLatency(ctx context.Context, operation string, start time.Time) {
	dbLatency.WithLabelValues(operation, RouteFromContext(ctx)).Observe(time.Since(start).Seconds())
}

// ObserveToggle counts one completion toggle outcome.
func ObserveToggle(result string) {
	togglesTotal.WithLabelValues(result).Inc()
}

// ObserveConflictRetry counts one retried habit mutation.
func ObserveConflictRetry() {
	conflictRetriesTotal.Inc()
}

// RequestIDFromContext extracts the request ID stored by the metrics middleware.
func RequestIDFromContext(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return reqID
	}
	return middleware.GetReqID(ctx)
}

// RouteFromContext returns the matched route pattern, or "unknown" outside
// of an instrumented request.
func RouteFromContext(ctx context.Context) string {
	if label, ok := ctx.Value(routeLabelKey).(*route); ok {
		if label.pattern != "" {
			return label.pattern
		}
		if rctx := chi.RouteContext(ctx); rctx != nil {
			if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
				return pattern
			}
		}
	}
	return "unknown"
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
