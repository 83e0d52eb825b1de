package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckResult_Immutable(t *testing.T) {
	payload := map[string]any{PayloadIdentifier: "approved", PayloadReason: "not_approved"}
	result := FailedResult(payload)

	payload[PayloadReason] = "mutated"
	assert.Equal(t, "not_approved", result.Reason(), "constructor must copy the payload")

	got := result.Payload()
	got[PayloadReason] = "mutated"
	assert.Equal(t, "not_approved", result.Reason(), "Payload must return a copy")
}

func TestCheckResult_StatusPredicates(t *testing.T) {
	ok := SuccessResult(map[string]any{PayloadIdentifier: "open"})
	assert.True(t, ok.Success())
	assert.False(t, ok.Failed())
	assert.Equal(t, "open", ok.Identifier())
	assert.Empty(t, ok.Reason())

	failed := FailedResult(map[string]any{PayloadIdentifier: "draft", PayloadReason: "draft_status"})
	assert.True(t, failed.Failed())
	assert.False(t, failed.Success())
	assert.Equal(t, "draft_status", failed.Reason())

	var zero CheckResult
	assert.False(t, zero.Success())
	assert.False(t, zero.Failed())
}

func TestCheckResult_JSONRoundTrip(t *testing.T) {
	original := FailedResult(map[string]any{PayloadIdentifier: "approved", PayloadReason: "not_approved"})

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"failed","payload":{"identifier":"approved","reason":"not_approved"}}`, string(data))

	var decoded CheckResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Status(), decoded.Status())
	assert.Equal(t, original.Reason(), decoded.Reason())
	assert.Equal(t, original.Identifier(), decoded.Identifier())
}

func TestCheckResultFromMap(t *testing.T) {
	tests := []struct {
		name   string
		input  map[string]any
		wantOK bool
	}{
		{name: "success", input: map[string]any{"status": "success", "payload": map[string]any{}}, wantOK: true},
		{name: "failed without payload", input: map[string]any{"status": "failed"}, wantOK: true},
		{name: "missing status", input: map[string]any{"payload": map[string]any{}}, wantOK: false},
		{name: "unknown status", input: map[string]any{"status": "inactive"}, wantOK: false},
		{name: "status of wrong type", input: map[string]any{"status": 1}, wantOK: false},
		{name: "nil map", input: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := CheckResultFromMap(tt.input)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestCheckResult_UnmarshalRejectsMissingStatus(t *testing.T) {
	var r CheckResult
	err := json.Unmarshal([]byte(`{"payload":{"reason":"x"}}`), &r)
	assert.Error(t, err)
}

func TestCheckResult_JSONRoundTripKeepsNumberTypes(t *testing.T) {
	original := FailedResult(map[string]any{
		PayloadIdentifier:    "approved",
		PayloadReason:        "not_approved",
		"approvals":          1,
		"required_approvals": 2,
		"ratio":              0.5,
		"nested":             map[string]any{"count": 3},
	})

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded CheckResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Payload(), decoded.Payload())
	assert.IsType(t, 0, decoded.Payload()["approvals"])
	assert.IsType(t, 0.0, decoded.Payload()["ratio"])
}

func TestDecodeResultMap(t *testing.T) {
	m, err := DecodeResultMap([]byte(`{"status":"success","payload":{"n":7,"big":12345678901,"f":1.25,"list":[1,2.5]}}`))
	require.NoError(t, err)

	payload, ok := m["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 7, payload["n"])
	assert.Equal(t, 12345678901, payload["big"])
	assert.Equal(t, 1.25, payload["f"])
	assert.Equal(t, []any{1, 2.5}, payload["list"])

	_, err = DecodeResultMap([]byte("{{"))
	assert.Error(t, err)
}
