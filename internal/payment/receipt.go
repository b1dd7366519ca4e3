// Package payment implements the receipt wire protocol: the base64-encoded
// JSON values carried in the X-Payment request header and the
// X-Payment-Response response header. The encoding is a compatibility
// contract with existing wallets and CLIs and must not change.
package payment

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

const (
	// RequestHeader carries the caller's receipt.
	RequestHeader = "X-Payment"
	// ResponseHeader carries the settlement receipt on successful responses.
	ResponseHeader = "X-Payment-Response"
)

// Transaction signatures are base58-encoded 64-byte ed25519 signatures,
// which encode to 87 or 88 characters; the bounds leave headroom for
// other signature container formats.
const (
	minSignatureLength = 80
	maxSignatureLength = 100
)

var (
	// ErrMalformedHeader means the header was not valid base64 JSON.
	ErrMalformedHeader = errors.New("malformed payment header")
	// ErrInvalidPayload means the decoded receipt is structurally invalid.
	ErrInvalidPayload = errors.New("invalid payment payload")
	// ErrInvalidPaymentID means the paymentId field is not a UUID.
	ErrInvalidPaymentID = errors.New("invalid payment id")
)

// Receipt is the caller-presented proof of payment.
type Receipt struct {
	TxSignature string `json:"txSignature"`
	PaymentID   string `json:"paymentId"`
}

// SettlementReceipt is echoed to the caller after a successful request.
type SettlementReceipt struct {
	TxSignature string `json:"txSignature"`
	PaymentID   string `json:"paymentId"`
	Settled     bool   `json:"settled"`
}

// DecodeReceipt parses an X-Payment header value. Base64 or JSON failures
// return ErrMalformedHeader; structural failures return ErrInvalidPayload.
func DecodeReceipt(header string) (*Receipt, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks the receipt's structural constraints.
func (r *Receipt) Validate() error {
	if r.TxSignature == "" {
		return fmt.Errorf("%w: txSignature is required", ErrInvalidPayload)
	}
	if len(r.TxSignature) < minSignatureLength || len(r.TxSignature) > maxSignatureLength {
		return fmt.Errorf("%w: txSignature length out of range", ErrInvalidPayload)
	}
	if _, err := base58.Decode(r.TxSignature); err != nil {
		return fmt.Errorf("%w: txSignature is not base58", ErrInvalidPayload)
	}
	if _, err := uuid.Parse(r.PaymentID); err != nil {
		return fmt.Errorf("%w: paymentId is not a UUID", ErrInvalidPaymentID)
	}
	return nil
}

// Encode returns the base64(JSON) form of the receipt.
func (r *Receipt) Encode() string {
	raw, _ := json.Marshal(r)
	return base64.StdEncoding.EncodeToString(raw)
}

// Encode returns the base64(JSON) X-Payment-Response header value.
func (s *SettlementReceipt) Encode() string {
	raw, _ := json.Marshal(s)
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeSettlementReceipt parses an X-Payment-Response header value. Used by
// clients and tests; the gateway only encodes.
func DecodeSettlementReceipt(header string) (*SettlementReceipt, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	var s SettlementReceipt
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return &s, nil
}
