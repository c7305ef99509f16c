// Package metrics exposes Prometheus collectors for the HTTP layer and auth flows.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "authapi/internal/errors"
)

const unmatchedRoute = "unmatched"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"method", "route", "status"},
	)

	httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP responses with status >= 400",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	authEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Total number of auth flow outcomes",
		},
		[]string{"event", "outcome"},
	)

	emailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of transactional emails attempted",
		},
		[]string{"template", "status"},
	)

	rateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_exceeded_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"tier"},
	)
)

// Middleware records request count, latency and errors labelled by route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = apperrors.Normalize(err).StatusCode
			}
			route := c.Path()
			if route == "" {
				route = unmatchedRoute
			}
			method := c.Request().Method
			code := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(method, route, code).Inc()
			httpRequestDuration.WithLabelValues(method, route, code).Observe(time.Since(start).Seconds())
			if status >= 400 {
				httpErrorsTotal.WithLabelValues(method, route, code).Inc()
			}
			return err
		}
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Recorder feeds domain events into the collectors.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// AuthEvent counts one auth flow outcome, e.g. ("login", "success").
func (Recorder) AuthEvent(event, outcome string) {
	authEventsTotal.WithLabelValues(event, outcome).Inc()
}

// EmailSent counts one delivery attempt for template.
func (Recorder) EmailSent(template string, ok bool) {
	status := "success"
	if !ok {
		status = "failure"
	}
	emailsSentTotal.WithLabelValues(template, status).Inc()
}

// RateLimited counts one rejected request for tier.
func (Recorder) RateLimited(tier string) {
	rateLimitExceeded.WithLabelValues(tier).Inc()
}
