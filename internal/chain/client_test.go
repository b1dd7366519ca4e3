package chain

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenBalances(t *testing.T) {
	mint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	owner := solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")

	rows := []rpc.TokenBalance{
		{
			AccountIndex: 2,
			Mint:         mint,
			Owner:        &owner,
			UiTokenAmount: &rpc.UiTokenAmount{
				Amount:   "1001000",
				Decimals: 6,
			},
		},
		{
			AccountIndex: 3,
			Mint:         mint,
			UiTokenAmount: &rpc.UiTokenAmount{
				Amount:   "500",
				Decimals: 6,
			},
		},
	}

	out := flattenBalances(rows)
	require.Len(t, out, 2)

	assert.Equal(t, uint16(2), out[0].AccountIndex)
	assert.Equal(t, mint.String(), out[0].Mint)
	assert.Equal(t, owner.String(), out[0].Owner)
	assert.Equal(t, int64(1_001_000), out[0].Amount)

	assert.Empty(t, out[1].Owner)
	assert.Equal(t, int64(500), out[1].Amount)
}

func TestFlattenBalancesDropsUnparseableRows(t *testing.T) {
	mint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	rows := []rpc.TokenBalance{
		{AccountIndex: 1, Mint: mint}, // no amount at all
		{
			AccountIndex:  2,
			Mint:          mint,
			UiTokenAmount: &rpc.UiTokenAmount{Amount: "not-a-number"},
		},
		{
			AccountIndex:  3,
			Mint:          mint,
			UiTokenAmount: &rpc.UiTokenAmount{Amount: "42"},
		},
	}

	out := flattenBalances(rows)
	require.Len(t, out, 1)
	assert.Equal(t, int64(42), out[0].Amount)
}

func TestGetTokenTransferRejectsBadSignature(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.GetTokenTransfer(context.Background(), "not base58!!")
	assert.Error(t, err)
}
