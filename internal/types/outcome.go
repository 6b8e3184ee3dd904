package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TestResult is the classification of one endpoint call
type TestResult string

const (
	Successful TestResult = "Successful"
	Failed     TestResult = "Failed"
	Incomplete TestResult = "Incomplete"
)

// FailureDetails describes why a call was classified as Failed. Values hold
// whatever JSON value the service returned (string, number or nil).
type FailureDetails struct {
	Status    any `json:"status"`
	ErrorCode any `json:"error_code"`
	Message   any `json:"message"`
}

// Outcome is one ledger entry
type Outcome struct {
	Endpoint       string
	Result         TestResult
	FailureDetails *FailureDetails
	TestDate       time.Time

	// Fields carries the catalog entry's members so extra fields round-trip
	Fields map[string]json.RawMessage
}

// Ledger is the persisted record of one run
type Ledger = Tree[Outcome]

// MarshalJSON merges the carried fields with the outcome members. Keys are
// emitted sorted, so equal outcomes encode to equal bytes.
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(o.Fields)+4)
	for k, v := range o.Fields {
		out[k] = v
	}
	out["endpoint"] = o.Endpoint
	out["test_result"] = o.Result
	out["failure_details"] = o.FailureDetails
	out["test_date"] = EpochSeconds(o.TestDate)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// UnmarshalJSON reads a ledger entry back, keeping unknown members in Fields
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode outcome: %w", err)
	}
	var out Outcome
	if v, ok := raw["endpoint"]; ok {
		if err := json.Unmarshal(v, &out.Endpoint); err != nil {
			return fmt.Errorf("failed to decode endpoint: %w", err)
		}
	}
	if v, ok := raw["test_result"]; ok {
		if err := json.Unmarshal(v, &out.Result); err != nil {
			return fmt.Errorf("failed to decode test_result: %w", err)
		}
	}
	if v, ok := raw["failure_details"]; ok {
		if err := json.Unmarshal(v, &out.FailureDetails); err != nil {
			return fmt.Errorf("failed to decode failure_details: %w", err)
		}
	}
	if v, ok := raw["test_date"]; ok {
		var secs float64
		if err := json.Unmarshal(v, &secs); err != nil {
			return fmt.Errorf("failed to decode test_date: %w", err)
		}
		out.TestDate = FromEpochSeconds(secs)
	}
	for _, k := range []string{"endpoint", "test_result", "failure_details", "test_date"} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		out.Fields = raw
	}
	*o = out
	return nil
}

// EpochSeconds converts t to fractional seconds since the Unix epoch
func EpochSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromEpochSeconds is the inverse of EpochSeconds, truncated to microseconds
func FromEpochSeconds(secs float64) time.Time {
	if secs == 0 {
		return time.Time{}
	}
	return time.UnixMicro(int64(secs * 1e6))
}
