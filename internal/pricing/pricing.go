// Package pricing maps a JSON-RPC method and its params to a price in
// billing-token base units. The policy is a pure function of its inputs:
// the table and multipliers are fixed at construction time.
package pricing

import (
	"encoding/json"
	"strings"

	"solgate/internal/jsonrpc"
	"solgate/internal/usdc"
)

// Multipliers. Exactly one applies to any given request; the method sets
// which one is even considered.
const (
	deepHistoricalMultiplier = 1.5
	bulkQueryMultiplier      = 1.3
	realTimeMultiplier       = 0.8
)

// deepHistoricalSlotCeiling is the first slot that no longer counts as deep
// history. Queries strictly below it hit the cold archive tier.
const deepHistoricalSlotCeiling = 100_000

// bulkQueryLimitThreshold is the largest signature-page size still priced
// as a normal query.
const bulkQueryLimitThreshold = 10

// DefaultBasePrice is charged for methods without a table entry.
const DefaultBasePrice = 0.001

// defaultTable holds the built-in per-method base prices in human units.
var defaultTable = map[string]float64{
	"getBlock":                0.001,
	"getTransaction":          0.001,
	"getSignaturesForAddress": 0.001,
	"getSlot":                 0.001,
	"getBlockHeight":          0.001,
	"getAccountInfo":          0.0005,
	"getBalance":              0.0005,
}

// Policy prices JSON-RPC requests. Construct once and share; it is
// immutable after New.
type Policy struct {
	table        map[string]usdc.MicroUSDC
	extra        map[string]usdc.MicroUSDC
	defaultPrice usdc.MicroUSDC
}

// New builds a policy from the built-in table, a default price for unknown
// methods, and per-method overrides keyed by upper-cased method name
// (PRICE_GETBLOCK → getBlock). Overrides for methods outside the built-in
// table add new entries rather than being dropped; those are matched
// case-insensitively at price time because the env key loses the method's
// original casing.
func New(defaultPrice float64, overrides map[string]float64) *Policy {
	if defaultPrice <= 0 {
		defaultPrice = DefaultBasePrice
	}

	table := make(map[string]usdc.MicroUSDC, len(defaultTable))
	for method, price := range defaultTable {
		table[method] = usdc.FromFloat(price)
	}

	extra := make(map[string]usdc.MicroUSDC)
	for key, override := range overrides {
		upper := strings.ToUpper(key)
		matched := false
		for method := range defaultTable {
			if strings.ToUpper(method) == upper {
				table[method] = usdc.FromFloat(override)
				matched = true
				break
			}
		}
		if !matched {
			extra[upper] = usdc.FromFloat(override)
		}
	}

	return &Policy{
		table:        table,
		extra:        extra,
		defaultPrice: usdc.FromFloat(defaultPrice),
	}
}

// Price returns the charge for a request in base units. Deterministic: the
// same (method, params) always price identically.
func (p *Policy) Price(method string, params json.RawMessage) usdc.MicroUSDC {
	base, ok := p.table[method]
	if !ok {
		base, ok = p.extra[strings.ToUpper(method)]
	}
	if !ok {
		base = p.defaultPrice
	}
	return base.RoundMul(multiplierFor(method, params))
}

// Table returns a copy of the resolved per-method base prices.
func (p *Policy) Table() map[string]usdc.MicroUSDC {
	out := make(map[string]usdc.MicroUSDC, len(p.table))
	for method, price := range p.table {
		out[method] = price
	}
	return out
}

// DefaultPrice returns the price charged for methods without a table entry.
func (p *Policy) DefaultPrice() usdc.MicroUSDC {
	return p.defaultPrice
}

func multiplierFor(method string, params json.RawMessage) float64 {
	switch method {
	case "getBlock", "getTransaction":
		if slot, ok := firstPositionalInt(params); ok && slot < deepHistoricalSlotCeiling {
			return deepHistoricalMultiplier
		}
	case "getSignaturesForAddress":
		if limit, ok := limitOption(params); ok && limit > bulkQueryLimitThreshold {
			return bulkQueryMultiplier
		}
	case "getSlot", "getBlockHeight":
		return realTimeMultiplier
	}
	return 1.0
}

// firstPositionalInt extracts params[0] when it is a JSON integer.
func firstPositionalInt(params json.RawMessage) (int64, bool) {
	arr := positional(params)
	if len(arr) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(arr[0], &n); err != nil {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// limitOption finds a "limit" option either in an object params value or in
// any positional object argument (getSignaturesForAddress passes it as the
// second positional parameter).
func limitOption(params json.RawMessage) (int64, bool) {
	candidates := positional(params)
	if candidates == nil && len(params) > 0 && params[0] == '{' {
		candidates = []json.RawMessage{params}
	}
	for _, raw := range candidates {
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		var opts struct {
			Limit *int64 `json:"limit"`
		}
		if err := json.Unmarshal(raw, &opts); err != nil {
			continue
		}
		if opts.Limit != nil {
			return *opts.Limit, true
		}
	}
	return 0, false
}

func positional(params json.RawMessage) []json.RawMessage {
	req := jsonrpc.Request{JSONRPC: jsonrpc.Version, Method: "_", Params: params}
	return req.PositionalParams()
}
