package jsonrpc

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	req, err := Parse([]byte(`{"jsonrpc":"2.0","id":1,"method":"getBlock","params":[14000000]}`))
	require.NoError(t, err)
	assert.Equal(t, "getBlock", req.Method)
	assert.Equal(t, json.RawMessage("1"), req.ID)
	assert.Equal(t, json.RawMessage("[14000000]"), req.Params)
}

func TestParseStringID(t *testing.T) {
	req, err := Parse([]byte(`{"jsonrpc":"2.0","id":"abc","method":"getSlot"}`))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"abc"`), req.ID)
	assert.Nil(t, req.PositionalParams())
}

func TestParseRejectsWrongVersion(t *testing.T) {
	_, err := Parse([]byte(`{"jsonrpc":"1.0","id":1,"method":"getSlot"}`))
	assert.Error(t, err)
}

func TestParseRejectsMissingMethod(t *testing.T) {
	_, err := Parse([]byte(`{"jsonrpc":"2.0","id":1}`))
	assert.Error(t, err)
}

func TestParseRejectsLongMethod(t *testing.T) {
	method := strings.Repeat("a", MaxMethodLength+1)
	_, err := Parse([]byte(`{"jsonrpc":"2.0","id":1,"method":"` + method + `"}`))
	assert.Error(t, err)
}

func TestParseRejectsOversizedParams(t *testing.T) {
	_, err := Parse([]byte(`{"jsonrpc":"2.0","id":1,"method":"getSlot","params":[1,2,3,4,5,6,7,8,9,10,11]}`))
	assert.Error(t, err)

	// Exactly 10 entries is fine
	_, err = Parse([]byte(`{"jsonrpc":"2.0","id":1,"method":"getSlot","params":[1,2,3,4,5,6,7,8,9,10]}`))
	assert.NoError(t, err)
}

func TestParseObjectParamsAllowed(t *testing.T) {
	req, err := Parse([]byte(`{"jsonrpc":"2.0","id":1,"method":"getSignaturesForAddress","params":{"limit":20}}`))
	require.NoError(t, err)
	assert.Nil(t, req.PositionalParams())
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{`))
	assert.Error(t, err)
}

func TestPositionalParams(t *testing.T) {
	req, err := Parse([]byte(`{"jsonrpc":"2.0","id":1,"method":"getBlock","params":[50000,{"encoding":"json"}]}`))
	require.NoError(t, err)
	params := req.PositionalParams()
	require.Len(t, params, 2)
	assert.Equal(t, json.RawMessage("50000"), params[0])
}

func TestNewErrorResponseEchoesID(t *testing.T) {
	resp := NewErrorResponse(json.RawMessage(`"req-7"`), CodeInvalidRequest, "bad request")
	assert.Equal(t, Version, resp.JSONRPC)
	assert.Equal(t, json.RawMessage(`"req-7"`), resp.ID)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestNewErrorResponseNullID(t *testing.T) {
	out := MarshalErrorResponse(nil, CodeInternalError, "all providers failed")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Nil(t, decoded["id"])
	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, float64(CodeInternalError), errObj["code"])
}
