package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Payload keys shared by every check result.
const (
	PayloadIdentifier = "identifier" // Identity of the check that produced the result.
	PayloadReason     = "reason"     // Failure reason token; present when failed.
)

// CheckResult is the outcome of running one mergeability check. It is never
// mutated once produced: the payload is copied on the way in and on the way
// out.
//
// Payload values must be JSON-encodable. After a JSON round trip, whole
// numbers come back as int and other numbers as float64, so a decoded result
// carries the same Go types a check builds with int counters.
type CheckResult struct {
	status  CheckStatus
	payload map[string]any
}

// NewCheckResult builds a result with the given status and a private copy of payload.
func NewCheckResult(status CheckStatus, payload map[string]any) CheckResult {
	return CheckResult{status: status, payload: maps.Clone(payload)}
}

// SuccessResult builds a passing result.
func SuccessResult(payload map[string]any) CheckResult {
	return NewCheckResult(CheckStatusSuccess, payload)
}

// FailedResult builds a failing result.
func FailedResult(payload map[string]any) CheckResult {
	return NewCheckResult(CheckStatusFailed, payload)
}

func (r CheckResult) Status() CheckStatus { return r.status }
func (r CheckResult) Success() bool       { return r.status == CheckStatusSuccess }
func (r CheckResult) Failed() bool        { return r.status == CheckStatusFailed }

// Reason returns the failure reason token, or "" if none was recorded.
func (r CheckResult) Reason() string {
	return payloadString(r.payload, PayloadReason)
}

// Identifier returns the identity of the check that produced the result.
func (r CheckResult) Identifier() string {
	return payloadString(r.payload, PayloadIdentifier)
}

// Payload returns a copy of the result payload.
func (r CheckResult) Payload() map[string]any {
	return maps.Clone(r.payload)
}

// ToMap returns the plain-map form used to round-trip results through a cache.
func (r CheckResult) ToMap() map[string]any {
	payload := maps.Clone(r.payload)
	if payload == nil {
		payload = map[string]any{}
	}
	return map[string]any{
		"status":  string(r.status),
		"payload": payload,
	}
}

// CheckResultFromMap reconstructs a result from its ToMap form. ok is false
// when m does not carry a valid status, in which case the entry must be
// treated as absent.
func CheckResultFromMap(m map[string]any) (CheckResult, bool) {
	raw, ok := m["status"].(string)
	if !ok {
		return CheckResult{}, false
	}
	status := CheckStatus(raw)
	if !status.Valid() {
		return CheckResult{}, false
	}

	var payload map[string]any
	if p, ok := m["payload"].(map[string]any); ok {
		payload = p
	}

	return NewCheckResult(status, payload), true
}

// MarshalJSON encodes the result in its ToMap form.
func (r CheckResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

// UnmarshalJSON decodes the ToMap form. It rejects input without a valid status.
func (r *CheckResult) UnmarshalJSON(data []byte) error {
	m, err := DecodeResultMap(data)
	if err != nil {
		return err
	}
	decoded, ok := CheckResultFromMap(m)
	if !ok {
		return fmt.Errorf("decode check result: missing or invalid status")
	}
	*r = decoded
	return nil
}

// DecodeResultMap decodes the JSON form of a result into its map form, with
// numbers restored as int when whole and float64 otherwise.
func DecodeResultMap(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	for k, v := range m {
		m[k] = restoreNumbers(v)
	}
	return m, nil
}

func restoreNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, inner := range t {
			t[k] = restoreNumbers(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = restoreNumbers(inner)
		}
		return t
	default:
		return v
	}
}

func payloadString(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}
