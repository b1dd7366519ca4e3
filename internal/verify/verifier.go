// Package verify decides whether a presented receipt proves an on-chain
// SPL-token transfer of the invoiced amount, of the configured mint, to the
// configured recipient.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"solgate/internal/chain"
	"solgate/internal/usdc"
)

// AmountTolerance is the accepted deviation between the observed balance
// delta and the invoiced amount, in base units. It exists only to absorb
// decimal rounding on the paying side; widening it
// to absorb fees or other effects would change the payment contract.
const AmountTolerance = 100

// Request carries everything needed to check one receipt.
type Request struct {
	TxSignature    string
	PaymentID      string
	ExpectedAmount usdc.MicroUSDC
	Mint           string
	Recipient      string
}

// Result is the verifier's verdict. Valid=false always carries a Reason.
type Result struct {
	Valid  bool
	Reason string
}

// Verifier checks receipts against the chain, optionally consulting an
// external facilitator first. It never returns an error: every failure
// mode collapses to an invalid Result, so a chain outage can never be
// mistaken for an accepted payment.
type Verifier struct {
	reader      chain.Reader
	facilitator *Facilitator
	logger      *slog.Logger
}

// New creates a verifier. facilitator may be nil.
func New(reader chain.Reader, facilitator *Facilitator, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{reader: reader, facilitator: facilitator, logger: logger}
}

// Verify runs the receipt check.
//
// A facilitator's affirmative answer is trusted; a negative or erroring
// facilitator falls through to the on-chain check. The on-chain check
// accepts any credited token account whose balance moved by the invoiced
// amount (within AmountTolerance) on the billing mint. The account owner is
// deliberately not compared to the recipient: the owner column of the
// balance table can legitimately differ from the wallet address the payer
// was shown. Replay is prevented by the invoice store, not here.
// TODO: bind the paymentId to the transfer via an on-chain memo so two
// same-priced invoices cannot claim one transfer.
func (v *Verifier) Verify(ctx context.Context, req Request) Result {
	if v.facilitator != nil && v.facilitator.CanVerify() {
		ok, err := v.facilitator.Verify(ctx, req)
		if err != nil {
			v.logger.Warn("facilitator verify failed, falling back to chain",
				"paymentId", req.PaymentID, "error", err)
		} else if ok {
			return Result{Valid: true}
		}
	}
	return v.verifyOnChain(ctx, req)
}

func (v *Verifier) verifyOnChain(ctx context.Context, req Request) Result {
	tx, err := v.reader.GetTokenTransfer(ctx, req.TxSignature)
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			return Result{Reason: "tx not found"}
		}
		// Fail closed: an unreachable chain is never a payment.
		return Result{Reason: fmt.Sprintf("chain lookup failed: %v", err)}
	}
	if tx.Failed {
		return Result{Reason: "tx failed"}
	}
	if len(tx.Pre) == 0 || len(tx.Post) == 0 {
		return Result{Reason: "no token balance changes"}
	}

	preByIndex := make(map[uint16]chain.TokenBalance, len(tx.Pre))
	for _, pre := range tx.Pre {
		preByIndex[pre.AccountIndex] = pre
	}

	wrongMint := ""
	for _, post := range tx.Post {
		pre, ok := preByIndex[post.AccountIndex]
		if !ok {
			continue
		}
		if post.Mint != req.Mint {
			wrongMint = post.Mint
			continue
		}
		delta := post.Amount - pre.Amount
		if delta <= 0 {
			continue
		}
		diff := delta - int64(req.ExpectedAmount)
		if diff < 0 {
			diff = -diff
		}
		if diff < AmountTolerance {
			return Result{Valid: true}
		}
	}

	if wrongMint != "" {
		return Result{Reason: fmt.Sprintf("wrong mint: actual=%s expected=%s", wrongMint, req.Mint)}
	}
	return Result{Reason: fmt.Sprintf("no valid transfer of %s to %s",
		req.ExpectedAmount.Decimal(), req.Recipient)}
}
