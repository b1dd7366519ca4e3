// Package invoice implements the payment invoice lifecycle store: mint on
// challenge, consume exactly once on a verified receipt, expire by TTL.
// The preferred backend is Redis with per-key TTLs; when Redis is missing
// or misbehaves the store degrades permanently to an in-process map.
package invoice

import (
	"time"

	"solgate/internal/usdc"
)

// DefaultTTL is how long a minted invoice stays payable.
const DefaultTTL = 15 * time.Minute

// Invoice is one minted payment obligation. Amount, Mint, Recipient and
// Method are immutable after creation; only Used/UsedAt ever change.
type Invoice struct {
	PaymentID string         `json:"paymentId"`
	Amount    usdc.MicroUSDC `json:"amount"`
	Mint      string         `json:"mint"`
	Recipient string         `json:"recipient"`
	Method    string         `json:"method"`
	CreatedAt time.Time      `json:"createdAt"`
	Used      bool           `json:"used"`
	UsedAt    *time.Time     `json:"usedAt,omitempty"`
}

// Stats summarises the live invoice population for observability.
type Stats struct {
	Total   int    `json:"total"`
	Used    int    `json:"used"`
	Unused  int    `json:"unused"`
	Backend string `json:"backend"`
}

func (inv *Invoice) clone() *Invoice {
	out := *inv
	if inv.UsedAt != nil {
		usedAt := *inv.UsedAt
		out.UsedAt = &usedAt
	}
	return &out
}
