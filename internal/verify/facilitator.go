package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const facilitatorTimeout = 10 * time.Second

// Facilitator is a client for an external x402 verification service. It is
// consulted before the on-chain check when a verify URL is configured.
type Facilitator struct {
	verifyURL string
	chain     string
	client    *http.Client
}

// NewFacilitator creates a facilitator client. verifyURL may be empty, in
// which case CanVerify reports false and the verifier goes straight to the
// chain.
func NewFacilitator(verifyURL, chainTag string) *Facilitator {
	return &Facilitator{
		verifyURL: verifyURL,
		chain:     chainTag,
		client:    &http.Client{Timeout: facilitatorTimeout},
	}
}

// CanVerify reports whether a verify endpoint is configured.
func (f *Facilitator) CanVerify() bool {
	return f.verifyURL != ""
}

type facilitatorVerifyRequest struct {
	TxSignature string `json:"txSignature"`
	PaymentID   string `json:"paymentId"`
	Amount      string `json:"amount"`
	Mint        string `json:"mint"`
	Recipient   string `json:"recipient"`
	Chain       string `json:"chain"`
}

// Verify asks the facilitator whether the receipt is good. Facilitator
// implementations disagree on the response shape, so any of verified=true,
// valid=true or status="success" counts as affirmative.
func (f *Facilitator) Verify(ctx context.Context, req Request) (bool, error) {
	body, err := json.Marshal(facilitatorVerifyRequest{
		TxSignature: req.TxSignature,
		PaymentID:   req.PaymentID,
		Amount:      req.ExpectedAmount.Decimal(),
		Mint:        req.Mint,
		Recipient:   req.Recipient,
		Chain:       f.chain,
	})
	if err != nil {
		return false, fmt.Errorf("marshal verify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.verifyURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("facilitator verify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("facilitator verify: status %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode verify response: %w", err)
	}
	if v, ok := out["verified"].(bool); ok && v {
		return true, nil
	}
	if v, ok := out["valid"].(bool); ok && v {
		return true, nil
	}
	if s, ok := out["status"].(string); ok && s == "success" {
		return true, nil
	}
	return false, nil
}
