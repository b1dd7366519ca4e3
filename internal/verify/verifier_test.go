package verify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solgate/internal/chain"
	"solgate/internal/usdc"
)

const (
	testMint      = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testRecipient = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

var testSignature = strings.Repeat("5Ej", 29)

// fakeReader serves one canned transaction, or an error.
type fakeReader struct {
	tx  *chain.TokenTransferTx
	err error
}

func (f *fakeReader) GetTokenTransfer(_ context.Context, _ string) (*chain.TokenTransferTx, error) {
	return f.tx, f.err
}

func transferTx(mint string, pre, post int64) *chain.TokenTransferTx {
	return &chain.TokenTransferTx{
		Signature: testSignature,
		Pre:       []chain.TokenBalance{{AccountIndex: 2, Mint: mint, Owner: testRecipient, Amount: pre}},
		Post:      []chain.TokenBalance{{AccountIndex: 2, Mint: mint, Owner: testRecipient, Amount: post}},
	}
}

func testRequest(amount usdc.MicroUSDC) Request {
	return Request{
		TxSignature:    testSignature,
		PaymentID:      "b2c7a1de-58f1-4f8e-9c44-0f1f7a6d3e21",
		ExpectedAmount: amount,
		Mint:           testMint,
		Recipient:      testRecipient,
	}
}

func TestVerifyAcceptsExactAmount(t *testing.T) {
	v := New(&fakeReader{tx: transferTx(testMint, 5_000_000, 5_001_000)}, nil, nil)

	res := v.Verify(context.Background(), testRequest(1000))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Reason)
}

func TestVerifyToleranceBoundary(t *testing.T) {
	tests := []struct {
		name  string
		delta int64
		valid bool
	}{
		{"exact", 1000, true},
		{"under by 99", 901, true},
		{"over by 99", 1099, true},
		{"under by 100", 900, false},
		{"over by 100", 1100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(&fakeReader{tx: transferTx(testMint, 0, tt.delta)}, nil, nil)
			res := v.Verify(context.Background(), testRequest(1000))
			assert.Equal(t, tt.valid, res.Valid)
		})
	}
}

func TestVerifyRejectsNotFound(t *testing.T) {
	v := New(&fakeReader{err: chain.ErrNotFound}, nil, nil)

	res := v.Verify(context.Background(), testRequest(1000))
	require.False(t, res.Valid)
	assert.Equal(t, "tx not found", res.Reason)
}

func TestVerifyFailsClosedOnChainError(t *testing.T) {
	v := New(&fakeReader{err: errors.New("connection refused")}, nil, nil)

	res := v.Verify(context.Background(), testRequest(1000))
	require.False(t, res.Valid)
	assert.Contains(t, res.Reason, "chain lookup failed")
}

func TestVerifyRejectsFailedTx(t *testing.T) {
	tx := transferTx(testMint, 0, 1000)
	tx.Failed = true
	v := New(&fakeReader{tx: tx}, nil, nil)

	res := v.Verify(context.Background(), testRequest(1000))
	require.False(t, res.Valid)
	assert.Equal(t, "tx failed", res.Reason)
}

func TestVerifyRejectsNoBalanceChanges(t *testing.T) {
	v := New(&fakeReader{tx: &chain.TokenTransferTx{Signature: testSignature}}, nil, nil)

	res := v.Verify(context.Background(), testRequest(1000))
	require.False(t, res.Valid)
	assert.Equal(t, "no token balance changes", res.Reason)
}

func TestVerifyRejectsWrongMint(t *testing.T) {
	otherMint := "So11111111111111111111111111111111111111112"
	v := New(&fakeReader{tx: transferTx(otherMint, 0, 1000)}, nil, nil)

	res := v.Verify(context.Background(), testRequest(1000))
	require.False(t, res.Valid)
	assert.Contains(t, res.Reason, "wrong mint")
	assert.Contains(t, res.Reason, otherMint)
	assert.Contains(t, res.Reason, testMint)
}

func TestVerifyRejectsDebit(t *testing.T) {
	v := New(&fakeReader{tx: transferTx(testMint, 5_000_000, 4_999_000)}, nil, nil)

	res := v.Verify(context.Background(), testRequest(1000))
	require.False(t, res.Valid)
	assert.Contains(t, res.Reason, "no valid transfer of 0.001000 to "+testRecipient)
}

func TestVerifyFacilitatorAffirmativeShortCircuits(t *testing.T) {
	f := NewFacilitator("https://facilitator.test/verify", "solana")
	httpmock.ActivateNonDefault(f.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://facilitator.test/verify",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{"verified": true}))

	// Reader would reject; the facilitator's yes wins
	v := New(&fakeReader{err: chain.ErrNotFound}, f, nil)
	res := v.Verify(context.Background(), testRequest(1000))
	assert.True(t, res.Valid)
}

func TestVerifyFacilitatorNegativeFallsThrough(t *testing.T) {
	f := NewFacilitator("https://facilitator.test/verify", "solana")
	httpmock.ActivateNonDefault(f.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://facilitator.test/verify",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{"verified": false}))

	v := New(&fakeReader{tx: transferTx(testMint, 0, 1000)}, f, nil)
	res := v.Verify(context.Background(), testRequest(1000))
	assert.True(t, res.Valid, "chain check still runs after a facilitator no")
}

func TestVerifyFacilitatorErrorFallsThrough(t *testing.T) {
	f := NewFacilitator("https://facilitator.test/verify", "solana")
	httpmock.ActivateNonDefault(f.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://facilitator.test/verify",
		httpmock.NewStringResponder(500, "boom"))

	v := New(&fakeReader{tx: transferTx(testMint, 0, 1000)}, f, nil)
	res := v.Verify(context.Background(), testRequest(1000))
	assert.True(t, res.Valid)
}

func TestFacilitatorResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
		ok   bool
	}{
		{"verified", map[string]any{"verified": true}, true},
		{"valid", map[string]any{"valid": true}, true},
		{"status success", map[string]any{"status": "success"}, true},
		{"status failed", map[string]any{"status": "failed"}, false},
		{"empty", map[string]any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFacilitator("https://facilitator.test/verify", "solana")
			httpmock.ActivateNonDefault(f.client)
			defer httpmock.DeactivateAndReset()

			httpmock.RegisterResponder("POST", "https://facilitator.test/verify",
				httpmock.NewJsonResponderOrPanic(200, tt.body))

			ok, err := f.Verify(context.Background(), testRequest(1000))
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestFacilitatorWithoutURL(t *testing.T) {
	f := NewFacilitator("", "solana")
	assert.False(t, f.CanVerify())
}
