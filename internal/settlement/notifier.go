// Package settlement notifies an optional facilitator that a payment was
// consumed. It is strictly best-effort and never blocks serving the paid
// response.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const settleTimeout = 10 * time.Second

// Notifier posts consumed receipts to the facilitator's settle endpoint.
type Notifier struct {
	settleURL string
	chain     string
	client    *http.Client
	logger    *slog.Logger
}

// New creates a notifier. settleURL may be empty; settlement is then a
// no-op reported as settled.
func New(settleURL, chainTag string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		settleURL: settleURL,
		chain:     chainTag,
		client:    &http.Client{Timeout: settleTimeout},
		logger:    logger,
	}
}

type settleRequest struct {
	TxSignature string `json:"txSignature"`
	PaymentID   string `json:"paymentId"`
	Chain       string `json:"chain"`
}

// Settle reports the consumed payment and reduces whatever happens to a
// single boolean for the response header. With no settle URL configured
// there is nothing to reconcile against, so the payment counts as settled.
func (n *Notifier) Settle(ctx context.Context, txSignature, paymentID string) bool {
	if n.settleURL == "" {
		return true
	}

	body, err := json.Marshal(settleRequest{
		TxSignature: txSignature,
		PaymentID:   paymentID,
		Chain:       n.chain,
	})
	if err != nil {
		n.logger.Error("marshal settle request", "paymentId", paymentID, "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.settleURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("build settle request", "paymentId", paymentID, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("settlement notification failed", "paymentId", paymentID, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("settlement notification rejected",
			"paymentId", paymentID, "status", resp.StatusCode)
		return false
	}
	return true
}
