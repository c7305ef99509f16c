package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "authapi/internal/errors"
)

// PingFunc checks one dependency.
type PingFunc func(ctx context.Context) error

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	name    string
	version string
	started time.Time
	checks  map[string]PingFunc
	timeout time.Duration
}

// NewHealthHandler creates a health handler. checks are run by Health.
func NewHealthHandler(name, version string, checks map[string]PingFunc) *HealthHandler {
	return &HealthHandler{
		name:    name,
		version: version,
		started: time.Now(),
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

// HealthStatus is returned by Health.
type HealthStatus struct {
	Uptime    float64           `json:"uptime"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Root godoc
// @Summary API info
// @Tags health
// @Produce json
// @Success 200 {object} Response
// @Router / [get]
func (h *HealthHandler) Root(c echo.Context) error {
	return respond(c, http.StatusOK, "API is running", echo.Map{
		"name":    h.name,
		"version": h.version,
	})
}

// Health godoc
// @Summary Readiness check
// @Description Pings the database and cache.
// @Tags health
// @Produce json
// @Success 200 {object} Response{data=HealthStatus}
// @Failure 503 {object} Response{data=HealthStatus}
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	status := HealthStatus{
		Uptime:    time.Since(h.started).Seconds(),
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string, len(h.checks)),
	}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status.Checks[name] = "down"
			healthy = false
			continue
		}
		status.Checks[name] = "up"
	}

	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, Response{
			Success:    false,
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Service Unavailable",
			Data:       status,
			RequestID:  c.Response().Header().Get(echo.HeaderXRequestID),
		})
	}
	return respond(c, http.StatusOK, "OK", status)
}

// Healthz is the liveness probe.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// NotFound answers unmatched routes.
func NotFound(c echo.Context) error {
	return apperrors.NotFound("API Not Found",
		apperrors.FieldError{Path: c.Request().URL.Path, Message: "Route not found"})
}
