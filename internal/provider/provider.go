// Package provider holds the pool of upstream RPC endpoints, scores them,
// and tracks their health across forwarded calls.
package provider

import (
	"slices"
	"time"
)

// Tiers group providers by access model. The tier is informational; pricing
// and selection read the numeric fields, not the tag.
const (
	TierPremium   = "premium"
	TierPublic    = "public"
	TierCommunity = "community"
)

// Health statuses.
const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// FeatureHistorical marks providers that retain full archival state. Methods
// that read old slots are only routed to providers carrying it.
const FeatureHistorical = "historical"

// MaxConsecutiveFailures is the last failure count at which a provider is
// still selectable. One more and it sits out until a success resets it.
const MaxConsecutiveFailures = 3

// Provider is one upstream RPC endpoint as declared in the catalog or added
// at runtime.
type Provider struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	URL             string   `json:"url" yaml:"url"`
	Tier            string   `json:"tier" yaml:"tier"`
	PriceMultiplier float64  `json:"priceMultiplier" yaml:"priceMultiplier"`
	Reputation      float64  `json:"reputation" yaml:"reputation"`
	Uptime          float64  `json:"uptime" yaml:"uptime"`
	LatencyMS       float64  `json:"latencyMs" yaml:"latencyMs"`
	Features        []string `json:"features" yaml:"features"`
}

// HasFeature reports whether the provider declares the given feature.
func (p *Provider) HasFeature(feature string) bool {
	return slices.Contains(p.Features, feature)
}

// Health is the registry-tracked state of one provider.
type Health struct {
	Status              string     `json:"status"`
	LastCheck           *time.Time `json:"lastCheck,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}

// Status is a provider joined with its current health, as served by the
// management API.
type Status struct {
	Provider
	Health Health `json:"health"`
}
