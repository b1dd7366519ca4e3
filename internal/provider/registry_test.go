package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archival(id string, reputation, uptime float64) Provider {
	return Provider{
		ID:              id,
		Name:            id,
		URL:             "https://" + id + ".example.com",
		Tier:            TierPremium,
		PriceMultiplier: 1.0,
		Reputation:      reputation,
		Uptime:          uptime,
		LatencyMS:       100,
		Features:        []string{FeatureHistorical},
	}
}

func TestRegistryAdd(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add(archival("alpha", 90, 99)))

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "alpha", list[0].ID)
	assert.Equal(t, StatusUnknown, list[0].Health.Status)
	assert.Zero(t, list[0].Health.ConsecutiveFailures)
}

func TestRegistryAddRejectsDuplicateID(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add(archival("alpha", 90, 99)))
	assert.Error(t, r.Add(archival("alpha", 50, 50)))
}

func TestRegistryAddRejectsIncompleteRecord(t *testing.T) {
	r := NewRegistry(nil)
	assert.Error(t, r.Add(Provider{ID: "no-url"}))
	assert.Error(t, r.Add(Provider{URL: "https://no.id"}))
}

func TestSelectEmptyPool(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Select("getSlot", false)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSelectBalancedPicksHighestScore(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add(archival("mid", 80, 95)))
	require.NoError(t, r.Add(archival("best", 95, 99)))
	require.NoError(t, r.Add(archival("worst", 40, 80)))

	p, err := r.Select("getSlot", false)
	require.NoError(t, err)
	assert.Equal(t, "best", p.ID)
}

func TestSelectCheapestWeighsPriceMultiplier(t *testing.T) {
	// Reputation and uptime score on a 0-100 scale, so they dominate the
	// price term unless held equal. With identical quality the cheaper
	// multiplier must decide.
	pricey := archival("pricey", 90, 98)
	pricey.PriceMultiplier = 2.0
	cheap := archival("cheap", 90, 98)
	cheap.PriceMultiplier = 0.5

	r := NewRegistry(nil)
	require.NoError(t, r.Add(pricey))
	require.NoError(t, r.Add(cheap))

	p, err := r.Select("getSlot", true)
	require.NoError(t, err)
	assert.Equal(t, "cheap", p.ID)
}

func TestSelectTieKeepsInsertionOrder(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add(archival("first", 90, 99)))
	require.NoError(t, r.Add(archival("second", 90, 99)))

	p, err := r.Select("getSlot", false)
	require.NoError(t, err)
	assert.Equal(t, "first", p.ID)
}

func TestSelectRequiresHistoricalFeature(t *testing.T) {
	light := archival("light", 99, 99)
	light.Features = nil

	r := NewRegistry(nil)
	require.NoError(t, r.Add(light))
	require.NoError(t, r.Add(archival("archive", 70, 90)))

	p, err := r.Select("getBlock", false)
	require.NoError(t, err)
	assert.Equal(t, "archive", p.ID, "getBlock must route to an archival provider")

	p, err = r.Select("getSlot", false)
	require.NoError(t, err)
	assert.Equal(t, "light", p.ID)
}

func TestSelectFailureThreshold(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add(archival("flaky", 99, 99)))
	require.NoError(t, r.Add(archival("steady", 50, 90)))

	// Three consecutive failures: still selectable
	for i := 0; i < 3; i++ {
		r.ReportFailure("flaky")
	}
	p, err := r.Select("getSlot", false)
	require.NoError(t, err)
	assert.Equal(t, "flaky", p.ID)

	// The fourth pushes it out
	r.ReportFailure("flaky")
	p, err = r.Select("getSlot", false)
	require.NoError(t, err)
	assert.Equal(t, "steady", p.ID)

	// A success resets the counter and readmits it
	r.ReportSuccess("flaky")
	p, err = r.Select("getSlot", false)
	require.NoError(t, err)
	assert.Equal(t, "flaky", p.ID)
}

func TestSelectDegradedWhenAllExcluded(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add(archival("only", 90, 99)))
	for i := 0; i < 5; i++ {
		r.ReportFailure("only")
	}

	p, err := r.Select("getSlot", false)
	require.NoError(t, err)
	assert.Equal(t, "only", p.ID, "an all-unhealthy pool still serves")
}

func TestOrderedPutsPrimaryFirst(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add(archival("a", 90, 99)))
	require.NoError(t, r.Add(archival("b", 90, 99)))
	require.NoError(t, r.Add(archival("c", 90, 99)))

	ordered := r.Ordered("b")
	require.Len(t, ordered, 3)
	assert.Equal(t, "b", ordered[0].ID)
	assert.Equal(t, "a", ordered[1].ID)
	assert.Equal(t, "c", ordered[2].ID)
}

func TestProbeUpdatesHealth(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"ok"}`))
	}))
	defer healthy.Close()

	r := NewRegistry(nil)
	up := archival("up", 90, 99)
	up.URL = healthy.URL
	down := archival("down", 90, 99)
	down.URL = "http://127.0.0.1:1"
	require.NoError(t, r.Add(up))
	require.NoError(t, r.Add(down))

	status, err := r.Probe(context.Background(), "up")
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, status.Health.Status)
	require.NotNil(t, status.Health.LastCheck)

	status, err = r.Probe(context.Background(), "down")
	require.NoError(t, err)
	assert.Equal(t, StatusUnhealthy, status.Health.Status)
	assert.Equal(t, 1, status.Health.ConsecutiveFailures)

	_, err = r.Probe(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequiresHistorical(t *testing.T) {
	assert.True(t, RequiresHistorical("getBlock"))
	assert.True(t, RequiresHistorical("getTransaction"))
	assert.True(t, RequiresHistorical("getSignaturesForAddress"))
	assert.False(t, RequiresHistorical("getSlot"))
	assert.False(t, RequiresHistorical("getAccountInfo"))
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  - id: helius
    name: Helius
    url: https://mainnet.helius-rpc.com
    tier: premium
    priceMultiplier: 1.2
    reputation: 95
    uptime: 99.9
    latencyMs: 80
    features: [historical]
  - id: public
    name: Public RPC
    url: https://api.mainnet-beta.solana.com
    tier: public
    priceMultiplier: 1.0
    reputation: 70
    uptime: 98
    latencyMs: 250
`), 0o644))

	providers, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "helius", providers[0].ID)
	assert.True(t, providers[0].HasFeature(FeatureHistorical))
	assert.Equal(t, 1.2, providers[0].PriceMultiplier)
	assert.False(t, providers[1].HasFeature(FeatureHistorical))
}

func TestLoadCatalogRejectsIncompleteEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: nameless\n"), 0o644))

	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
