package payment

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSignature is shaped like a real base58 transaction signature (87 chars).
var testSignature = strings.Repeat("5Ej", 29)

func TestReceiptRoundTrip(t *testing.T) {
	original := &Receipt{
		TxSignature: testSignature,
		PaymentID:   uuid.New().String(),
	}

	decoded, err := DecodeReceipt(original.Encode())
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestSettlementReceiptRoundTrip(t *testing.T) {
	original := &SettlementReceipt{
		TxSignature: testSignature,
		PaymentID:   uuid.New().String(),
		Settled:     true,
	}

	decoded, err := DecodeSettlementReceipt(original.Encode())
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeReceiptRejectsBadBase64(t *testing.T) {
	_, err := DecodeReceipt("not-base64!!!")
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestDecodeReceiptRejectsBadJSON(t *testing.T) {
	header := base64.StdEncoding.EncodeToString([]byte("{not json"))
	_, err := DecodeReceipt(header)
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestDecodeReceiptRejectsMissingSignature(t *testing.T) {
	r := &Receipt{PaymentID: uuid.New().String()}
	_, err := DecodeReceipt(r.Encode())
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeReceiptRejectsShortSignature(t *testing.T) {
	r := &Receipt{TxSignature: "abc", PaymentID: uuid.New().String()}
	_, err := DecodeReceipt(r.Encode())
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeReceiptRejectsNonBase58Signature(t *testing.T) {
	// 0 and O are outside the base58 alphabet
	r := &Receipt{TxSignature: strings.Repeat("0O", 43), PaymentID: uuid.New().String()}
	_, err := DecodeReceipt(r.Encode())
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeReceiptRejectsNonUUIDPaymentID(t *testing.T) {
	r := &Receipt{TxSignature: testSignature, PaymentID: "not-a-uuid"}
	_, err := DecodeReceipt(r.Encode())
	assert.ErrorIs(t, err, ErrInvalidPaymentID)
}
