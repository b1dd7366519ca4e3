package handlers

import (
	"github.com/gofiber/fiber/v3"

	"solgate/internal/invoice"
)

// StatsHandler serves invoice store statistics
type StatsHandler struct {
	store invoice.Store
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(store invoice.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// RegisterRoutes registers the stats route
func (h *StatsHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/stats", h.Stats)
}

// Stats returns invoice counts and the active backend
func (h *StatsHandler) Stats(c fiber.Ctx) error {
	stats, err := h.store.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "store_unavailable",
			"message": "Invoice store is unavailable",
		})
	}
	return c.JSON(stats)
}
