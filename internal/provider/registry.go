package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const probeTimeout = 5 * time.Second

// ErrNotFound means no provider carries the requested id.
var ErrNotFound = errors.New("provider not found")

// ErrEmpty means selection ran against an empty pool.
var ErrEmpty = errors.New("no providers registered")

// historicalMethods are the RPC methods that read archival state and must
// be routed to a provider with the historical feature.
var historicalMethods = map[string]bool{
	"getBlock":                true,
	"getTransaction":          true,
	"getSignaturesForAddress": true,
}

// RequiresHistorical reports whether the method needs an archival provider.
func RequiresHistorical(method string) bool {
	return historicalMethods[method]
}

// Registry is the process-wide provider pool. The provider list is
// append-only; health entries are mutated under the same lock so a selection
// snapshot is always consistent.
type Registry struct {
	mu        sync.RWMutex
	providers []*Provider
	health    map[string]*Health

	probeClient *http.Client
	logger      *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		health:      make(map[string]*Health),
		probeClient: &http.Client{Timeout: probeTimeout},
		logger:      logger,
	}
}

// Add registers a provider. It enters the pool immediately with unknown
// health and becomes selectable right away.
func (r *Registry) Add(p Provider) error {
	if p.ID == "" || p.URL == "" {
		return errors.New("provider needs id and url")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.health[p.ID]; exists {
		return fmt.Errorf("provider %q already registered", p.ID)
	}
	r.providers = append(r.providers, &p)
	r.health[p.ID] = &Health{Status: StatusUnknown}
	r.logger.Info("provider registered", "id", p.ID, "tier", p.Tier, "url", p.URL)
	return nil
}

// List returns every provider joined with its health, in insertion order.
func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, Status{Provider: *p, Health: *r.health[p.ID]})
	}
	return out
}

// Len reports the pool size.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Select picks the best provider for the method. Providers with more than
// MaxConsecutiveFailures are skipped; if that empties the pool the filter is
// dropped and selection runs degraded over everyone. Ties keep the earliest
// registered provider.
func (r *Registry) Select(method string, preferCheapest bool) (Provider, error) {
	requireHistorical := RequiresHistorical(method)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return Provider{}, ErrEmpty
	}

	candidates := make([]*Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if r.health[p.ID].ConsecutiveFailures > MaxConsecutiveFailures {
			continue
		}
		if requireHistorical && !p.HasFeature(FeatureHistorical) {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		r.logger.Warn("no healthy candidates, selecting degraded", "method", method)
		candidates = r.providers
	}

	best := candidates[0]
	bestScore := score(best, preferCheapest)
	for _, p := range candidates[1:] {
		if s := score(p, preferCheapest); s > bestScore {
			best, bestScore = p, s
		}
	}
	return *best, nil
}

// Ordered returns the pool in insertion order with the given primary first,
// for failover iteration. Unselectable providers are included; by the time
// failover reaches them everything better has already failed.
func (r *Registry) Ordered(primaryID string) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if p.ID == primaryID {
			out = append(out, *p)
		}
	}
	for _, p := range r.providers {
		if p.ID != primaryID {
			out = append(out, *p)
		}
	}
	return out
}

func score(p *Provider, preferCheapest bool) float64 {
	if preferCheapest {
		return (1-p.PriceMultiplier)*0.5 + p.Reputation*0.3 + p.Uptime*0.2
	}
	return p.Reputation*0.4 + p.Uptime*0.3 + (1-p.PriceMultiplier)*0.2 + (1-p.LatencyMS/500)*0.1
}

// ReportSuccess records a successful forwarded call.
func (r *Registry) ReportSuccess(id string) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.health[id]
	if !ok {
		return
	}
	h.Status = StatusHealthy
	h.ConsecutiveFailures = 0
	h.LastCheck = &now
}

// ReportFailure records a failed forwarded call.
func (r *Registry) ReportFailure(id string) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.health[id]
	if !ok {
		return
	}
	h.Status = StatusUnhealthy
	h.ConsecutiveFailures++
	h.LastCheck = &now
	if h.ConsecutiveFailures > MaxConsecutiveFailures {
		r.logger.Warn("provider excluded from selection", "id", id,
			"consecutiveFailures", h.ConsecutiveFailures)
	}
}

// Probe posts a trivial getHealth call to the provider and updates its
// health from the outcome.
func (r *Registry) Probe(ctx context.Context, id string) (Status, error) {
	r.mu.RLock()
	var target *Provider
	for _, p := range r.providers {
		if p.ID == id {
			target = p
			break
		}
	}
	r.mu.RUnlock()
	if target == nil {
		return Status{}, ErrNotFound
	}

	ok := r.probe(ctx, target.URL)
	if ok {
		r.ReportSuccess(id)
	} else {
		r.ReportFailure(id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{Provider: *target, Health: *r.health[id]}, nil
}

func (r *Registry) probe(ctx context.Context, url string) bool {
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"getHealth"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.probeClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
