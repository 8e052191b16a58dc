package controller

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

const serviceVersion = "1.0.0"

// HealthCheckFunc reports whether a dependency is reachable
type HealthCheckFunc func(ctx context.Context) error

type HealthController struct {
	service string
	checks  map[string]HealthCheckFunc
	timeout time.Duration
}

// NewHealthController creates a health controller. checks are keyed by dependency name.
func NewHealthController(service string, checks map[string]HealthCheckFunc) *HealthController {
	return &HealthController{
		service: service,
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string            `json:"status" example:"healthy"`
	Service      string            `json:"service" example:"clinic-auth"`
	Version      string            `json:"version" example:"1.0.0"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the service and its dependencies
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthController) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	resp := HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Version: serviceVersion,
	}
	if len(names) > 0 {
		resp.Dependencies = make(map[string]string, len(names))
	}

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Dependencies[name] = "unavailable"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[name] = "ok"
	}

	return c.JSON(status, resp)
}

// ServiceInfoResponse represents the service info response
type ServiceInfoResponse struct {
	Message string `json:"message" example:"Clinic Authentication Service"`
	Version string `json:"version" example:"1.0.0"`
	Docs    string `json:"docs" example:"/swagger/index.html"`
}

// ServiceInfo godoc
// @Summary Service information
// @Description Returns basic service information and documentation links
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} ServiceInfoResponse
// @Router / [get]
func (h *HealthController) ServiceInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, ServiceInfoResponse{
		Message: "Clinic Authentication Service",
		Version: serviceVersion,
		Docs:    "/swagger/index.html",
	})
}
