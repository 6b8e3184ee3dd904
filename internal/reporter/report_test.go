package reporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"endpoint-prober/internal/executor"
	"endpoint-prober/internal/ledger"
	"endpoint-prober/internal/types"
)

func sampleResults() *types.Ledger {
	l := types.NewTree[types.Outcome]()
	l.Append("user", "GET", types.Outcome{Endpoint: "/api/me", Result: types.Successful})
	l.Append("user", "GET", types.Outcome{
		Endpoint:       "/api/user/1/x",
		Result:         types.Failed,
		FailureDetails: &types.FailureDetails{Status: 404, Message: "nope"},
	})
	l.Append("ride", "GET", types.Outcome{Endpoint: "/api/ride/{rideId}", Result: types.Incomplete})
	return l
}

func TestReporter_RecordPrintsStatusLines(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(ReportingConfig{}, &buf)
	sampleResults().Walk(r.Record)

	out := buf.String()
	assert.Contains(t, out, "Category: user")
	assert.Contains(t, out, "GET /api/me SUCCESS")
	assert.Contains(t, out, "GET /api/user/1/x FAIL (404)")
	assert.Contains(t, out, "Category: ride")
	assert.Contains(t, out, "GET /api/ride/{rideId} INCOMPLETE")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("Category: user")))
}

func TestReporter_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(ReportingConfig{}, &buf)
	report := NewReport("run", "https://api", time.Now(), time.Second,
		executor.Tally{Successful: 1, Failed: 1, Incomplete: 1, Duplicates: 2},
		ledger.Integrity{Catalog: 5, Ledger: 3, Duplicates: 2},
		sampleResults(),
		[]ledger.Change{{Category: "user", Method: "GET", Endpoint: "/api/user/1/x", Before: types.Successful, After: types.Failed}},
	)
	r.PrintSummary(report)

	out := buf.String()
	assert.Contains(t, out, "Successful calls: 1")
	assert.Contains(t, out, "Failed calls: 1")
	assert.Contains(t, out, "Incomplete calls: 1")
	assert.Contains(t, out, "Duplicate endpoints skipped: 2")
	assert.Contains(t, out, "Regressions since last run: 1")
	assert.Contains(t, out, "WARNING: initial count of endpoints (5) does not match final count (3)")
}

func TestReporter_PrintSummaryMatched(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(ReportingConfig{}, &buf).PrintSummary(Report{Integrity: ledger.Integrity{Catalog: 3, Ledger: 3}})
	assert.Contains(t, buf.String(), "Endpoint counts matched. Initial and final count is 3.")
}

func TestReporter_GenerateJSONReport(t *testing.T) {
	dir := t.TempDir()
	r := NewReporter(ReportingConfig{Format: []string{"json"}, OutputDir: dir}, &bytes.Buffer{})
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := NewReport("0123456789abcdef", "https://api", started, time.Minute,
		executor.Tally{Successful: 1, Failed: 1, Incomplete: 1},
		ledger.Integrity{Catalog: 3, Ledger: 3},
		sampleResults(), nil)

	path, err := r.GenerateReport(report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_20240501_120000_01234567.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "0123456789abcdef", decoded["run_id"])
	assert.Equal(t, float64(60000), decoded["duration_ms"])
	assert.NotContains(t, decoded, "duration")
	failures := decoded["failures"].([]any)
	require.Len(t, failures, 1)
	assert.Equal(t, "/api/user/1/x", failures[0].(map[string]any)["endpoint"])
}

func TestReporter_UnsupportedFormat(t *testing.T) {
	r := NewReporter(ReportingConfig{Format: []string{"html"}, OutputDir: t.TempDir()}, &bytes.Buffer{})
	_, err := r.GenerateReport(Report{})
	assert.ErrorContains(t, err, "unsupported report format")
}
