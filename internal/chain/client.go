// Package chain reads confirmed transactions from the configured Solana RPC
// endpoint and flattens their token-balance metadata into base-unit tables
// for the payment verifier.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrNotFound means the signature does not resolve to a confirmed
// transaction (yet).
var ErrNotFound = errors.New("transaction not found")

// TokenBalance is one row of a pre- or post-transaction token-balance
// table, with the amount already parsed into base units.
type TokenBalance struct {
	AccountIndex uint16
	Mint         string
	Owner        string
	Amount       int64
}

// TokenTransferTx is the slice of a confirmed transaction the verifier
// cares about.
type TokenTransferTx struct {
	Signature string
	Failed    bool
	Pre       []TokenBalance
	Post      []TokenBalance
}

// Reader fetches confirmed transactions. The concrete Client talks to a
// Solana RPC node; tests substitute doubles.
type Reader interface {
	GetTokenTransfer(ctx context.Context, signature string) (*TokenTransferTx, error)
}

// Client is the solana-go backed Reader.
type Client struct {
	rpc *rpc.Client
}

// NewClient creates a chain client for the given RPC endpoint.
func NewClient(rpcURL string) *Client {
	return &Client{rpc: rpc.New(rpcURL)}
}

// GetTokenTransfer fetches the transaction at confirmed commitment and
// returns its status and token-balance tables.
func (c *Client) GetTokenTransfer(ctx context.Context, signature string) (*TokenTransferTx, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}

	version := rpc.MaxSupportedTransactionVersion0
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &version,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if out == nil || out.Meta == nil {
		return nil, ErrNotFound
	}

	return &TokenTransferTx{
		Signature: signature,
		Failed:    out.Meta.Err != nil,
		Pre:       flattenBalances(out.Meta.PreTokenBalances),
		Post:      flattenBalances(out.Meta.PostTokenBalances),
	}, nil
}

// flattenBalances converts the RPC token-balance rows into base-unit
// entries. Rows whose amount cannot be parsed are dropped rather than
// guessed at.
func flattenBalances(rows []rpc.TokenBalance) []TokenBalance {
	out := make([]TokenBalance, 0, len(rows))
	for _, row := range rows {
		if row.UiTokenAmount == nil {
			continue
		}
		amount, err := strconv.ParseInt(row.UiTokenAmount.Amount, 10, 64)
		if err != nil {
			continue
		}
		entry := TokenBalance{
			AccountIndex: row.AccountIndex,
			Mint:         row.Mint.String(),
			Amount:       amount,
		}
		if row.Owner != nil {
			entry.Owner = row.Owner.String()
		}
		out = append(out, entry)
	}
	return out
}
