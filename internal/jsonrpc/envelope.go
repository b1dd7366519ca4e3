// Package jsonrpc holds the JSON-RPC 2.0 envelope types the gateway accepts
// and forwards. The id and params fields are kept as raw JSON so a proxied
// request reaches the upstream byte-identical to what the caller sent.
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the only protocol version the gateway accepts.
const Version = "2.0"

const (
	// CodeInvalidRequest is returned for malformed inbound envelopes.
	CodeInvalidRequest = -32600
	// CodeInternalError is returned when every upstream provider failed.
	CodeInternalError = -32603
)

// MaxMethodLength bounds the method name of an inbound request.
const MaxMethodLength = 100

// MaxPositionalParams bounds the length of a positional params array.
const MaxPositionalParams = 10

// Request is an inbound JSON-RPC request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is an outbound JSON-RPC error envelope.
type ErrorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   Error           `json:"error"`
}

// Parse decodes and validates an inbound envelope. The returned error is
// caller-facing; the HTTP layer maps it to a 400 with CodeInvalidRequest.
func Parse(body []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks the envelope against the gateway's protocol limits.
func (r *Request) Validate() error {
	if r.JSONRPC != Version {
		return errors.New(`jsonrpc must be "2.0"`)
	}
	if r.Method == "" {
		return errors.New("method is required")
	}
	if len(r.Method) > MaxMethodLength {
		return fmt.Errorf("method exceeds %d characters", MaxMethodLength)
	}
	if len(r.Params) > 0 && r.Params[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(r.Params, &arr); err != nil {
			return fmt.Errorf("invalid params array: %w", err)
		}
		if len(arr) > MaxPositionalParams {
			return fmt.Errorf("params array exceeds %d entries", MaxPositionalParams)
		}
	}
	return nil
}

// PositionalParams returns the params decoded as a positional array, or nil
// when params is absent or an object.
func (r *Request) PositionalParams() []json.RawMessage {
	if len(r.Params) == 0 || r.Params[0] != '[' {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(r.Params, &arr); err != nil {
		return nil
	}
	return arr
}

// NewErrorResponse builds an error envelope echoing the caller's id. A nil
// or absent id is echoed as JSON null.
func NewErrorResponse(id json.RawMessage, code int, message string) *ErrorResponse {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &ErrorResponse{
		JSONRPC: Version,
		ID:      id,
		Error:   Error{Code: code, Message: message},
	}
}

// MarshalErrorResponse is NewErrorResponse serialised; it cannot fail for
// the inputs the gateway produces, so encoding errors collapse to a static
// envelope.
func MarshalErrorResponse(id json.RawMessage, code int, message string) []byte {
	out, err := json.Marshal(NewErrorResponse(id, code, message))
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return out
}
