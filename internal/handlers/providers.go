package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"solgate/internal/provider"
)

// ProvidersHandler handles provider pool administration
type ProvidersHandler struct {
	registry *provider.Registry
}

// NewProvidersHandler creates a new providers handler
func NewProvidersHandler(registry *provider.Registry) *ProvidersHandler {
	return &ProvidersHandler{registry: registry}
}

// RegisterRoutes registers provider administration routes
func (h *ProvidersHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/providers", h.List)
	app.Post("/providers", h.Add)
	app.Post("/providers/:id/probe", h.Probe)
}

// List returns every provider with its tracked health
func (h *ProvidersHandler) List(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"providers": h.registry.List(),
	})
}

// Add registers a provider at runtime. It becomes selectable immediately
// with unknown health.
func (h *ProvidersHandler) Add(c fiber.Ctx) error {
	var p provider.Provider
	if err := c.Bind().Body(&p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_request",
			"message": "Request body must be a provider record",
		})
	}

	if err := h.registry.Add(p); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "provider_rejected",
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     p.ID,
		"status": provider.StatusUnknown,
	})
}

// Probe runs an on-demand health probe against one provider
func (h *ProvidersHandler) Probe(c fiber.Ctx) error {
	status, err := h.registry.Probe(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "provider_not_found",
				"message": "No provider with that id",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "probe_failed",
			"message": err.Error(),
		})
	}
	return c.JSON(status)
}
