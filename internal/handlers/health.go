// Package handlers holds the management API that surrounds the billing
// pipeline: health, provider administration, pricing, and invoice stats.
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"solgate/internal/invoice"
	"solgate/internal/provider"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store    invoice.Store
	registry *provider.Registry
	version  string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store invoice.Store, registry *provider.Registry, version string) *HealthHandler {
	return &HealthHandler{store: store, registry: registry, version: version}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Timestamp int64             `json:"timestamp"`
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/health/live", h.Liveness)
	app.Get("/health/ready", h.Readiness)
}

// Health returns the full health status. The gateway keeps serving on the
// in-memory store and a degraded provider pool, so anything short of an
// empty pool reports at worst "degraded".
func (h *HealthHandler) Health(c fiber.Ctx) error {
	services := make(map[string]string)
	overallStatus := "healthy"

	backend := h.store.Backend()
	services["invoice_store"] = backend
	if backend != "redis" {
		overallStatus = "degraded"
	}

	healthy := 0
	for _, p := range h.registry.List() {
		if p.Health.ConsecutiveFailures <= provider.MaxConsecutiveFailures {
			healthy++
		}
	}
	switch {
	case h.registry.Len() == 0:
		services["providers"] = "empty"
		overallStatus = "unhealthy"
	case healthy == 0:
		services["providers"] = "all_failing"
		overallStatus = "degraded"
	default:
		services["providers"] = "up"
	}

	services["api"] = "up"

	return c.JSON(HealthResponse{
		Status:    overallStatus,
		Version:   h.version,
		Services:  services,
		Timestamp: time.Now().Unix(),
	})
}

// Liveness returns liveness probe status
func (h *HealthHandler) Liveness(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
	})
}

// Readiness returns readiness probe status; the gateway is ready once it
// has at least one provider to forward to.
func (h *HealthHandler) Readiness(c fiber.Ctx) error {
	if h.registry.Len() == 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
			"reason": "no upstream providers registered",
		})
	}
	return c.JSON(fiber.Map{
		"status": "ready",
	})
}
