package handlers

import (
	"sort"

	"github.com/gofiber/fiber/v3"

	"solgate/internal/pricing"
)

// PricingHandler serves the resolved price table
type PricingHandler struct {
	policy *pricing.Policy
	asset  string
	chain  string
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(policy *pricing.Policy, asset, chain string) *PricingHandler {
	return &PricingHandler{policy: policy, asset: asset, chain: chain}
}

// PricingResponse represents the pricing information response
type PricingResponse struct {
	Asset        string        `json:"asset"`
	Chain        string        `json:"chain"`
	DefaultPrice string        `json:"defaultPrice"`
	Methods      []MethodPrice `json:"methods"`
}

// MethodPrice represents a single method's base price
type MethodPrice struct {
	Method string `json:"method"`
	Price  string `json:"price"`
}

// RegisterRoutes registers the pricing route
func (h *PricingHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/pricing", h.GetPricing)
}

// GetPricing returns the per-method base prices. Multipliers are applied
// per request and are not part of this table.
func (h *PricingHandler) GetPricing(c fiber.Ctx) error {
	table := h.policy.Table()

	methods := make([]MethodPrice, 0, len(table))
	for method, price := range table {
		methods = append(methods, MethodPrice{Method: method, Price: price.Decimal()})
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].Method < methods[j].Method
	})

	return c.JSON(PricingResponse{
		Asset:        h.asset,
		Chain:        h.chain,
		DefaultPrice: h.policy.DefaultPrice().Decimal(),
		Methods:      methods,
	})
}
