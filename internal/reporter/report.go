package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"

	"endpoint-prober/internal/executor"
	"endpoint-prober/internal/ledger"
	"endpoint-prober/internal/types"
)

// Report represents the test execution report
type Report struct {
	RunID           string           `json:"run_id"`
	BaseURL         string           `json:"base_url"`
	Timestamp       time.Time        `json:"timestamp"`
	Duration        time.Duration    `json:"-"`
	DurationMS      int64            `json:"duration_ms"`
	Successful      int              `json:"successful"`
	Failed          int              `json:"failed"`
	Incomplete      int              `json:"incomplete"`
	Duplicates      int              `json:"duplicates"`
	TransportErrors int              `json:"transport_errors"`
	Skipped         int              `json:"skipped"`
	Calls           int              `json:"calls"`
	Integrity       ledger.Integrity `json:"integrity"`
	Changes         []ledger.Change  `json:"changes,omitempty"`
	Failures        []FailureEntry   `json:"failures,omitempty"`
}

// FailureEntry is one Failed outcome in the report
type FailureEntry struct {
	Category string                `json:"category"`
	Method   string                `json:"method"`
	Endpoint string                `json:"endpoint"`
	Details  *types.FailureDetails `json:"details"`
}

// Regressions counts changes from Successful to anything else
func (r Report) Regressions() int {
	n := 0
	for _, c := range r.Changes {
		if c.Regression() {
			n++
		}
	}
	return n
}

// NewReport assembles a report from the results of one run
func NewReport(runID, baseURL string, started time.Time, duration time.Duration, tally executor.Tally, integrity ledger.Integrity, results *types.Ledger, changes []ledger.Change) Report {
	report := Report{
		RunID:           runID,
		BaseURL:         baseURL,
		Timestamp:       started,
		Duration:        duration,
		DurationMS:      duration.Milliseconds(),
		Successful:      tally.Successful,
		Failed:          tally.Failed,
		Incomplete:      tally.Incomplete,
		Duplicates:      tally.Duplicates,
		TransportErrors: tally.TransportErrors,
		Skipped:         tally.Skipped,
		Calls:           tally.Calls,
		Integrity:       integrity,
		Changes:         changes,
	}
	results.Walk(func(category, method string, o types.Outcome) {
		if o.Result != types.Failed {
			return
		}
		report.Failures = append(report.Failures, FailureEntry{
			Category: category,
			Method:   method,
			Endpoint: o.Endpoint,
			Details:  o.FailureDetails,
		})
	})
	return report
}

// ReportingConfig holds the configuration for reporting
type ReportingConfig struct {
	Format    []string
	OutputDir string
}

// Reporter prints per-endpoint status lines during a run and writes the
// run report at the end. It implements executor.Observer.
type Reporter struct {
	config   ReportingConfig
	out      io.Writer
	category string

	success    lipgloss.Style
	fail       lipgloss.Style
	incomplete lipgloss.Style
	heading    lipgloss.Style
}

var _ executor.Observer = (*Reporter)(nil)

// NewReporter creates a new instance of Reporter printing to out
func NewReporter(config ReportingConfig, out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	renderer := lipgloss.NewRenderer(out)
	return &Reporter{
		config:     config,
		out:        out,
		success:    renderer.NewStyle().Foreground(lipgloss.Color("2")),
		fail:       renderer.NewStyle().Foreground(lipgloss.Color("1")),
		incomplete: renderer.NewStyle().Foreground(lipgloss.Color("3")),
		heading:    renderer.NewStyle().Bold(true),
	}
}

// Record prints the status line of one outcome
func (r *Reporter) Record(category, method string, o types.Outcome) {
	if category != r.category {
		r.category = category
		fmt.Fprintf(r.out, "\n%s\n", r.heading.Render("Category: "+category))
	}
	switch o.Result {
	case types.Successful:
		fmt.Fprintf(r.out, "%s %s %s\n", method, o.Endpoint, r.success.Render("SUCCESS"))
	case types.Failed:
		status := ""
		if o.FailureDetails != nil && o.FailureDetails.Status != nil {
			status = fmt.Sprintf(" (%v)", o.FailureDetails.Status)
		}
		fmt.Fprintf(r.out, "%s %s %s%s\n", method, o.Endpoint, r.fail.Render("FAIL"), status)
	case types.Incomplete:
		fmt.Fprintf(r.out, "%s %s %s\n", method, o.Endpoint, r.incomplete.Render("INCOMPLETE"))
	}
}

// PrintSummary prints the end-of-run counts and the integrity comparison
func (r *Reporter) PrintSummary(report Report) {
	fmt.Fprintf(r.out, "\n%s\n", r.heading.Render("Testing completed!"))
	fmt.Fprintf(r.out, "Successful calls: %s\n", r.success.Render(fmt.Sprint(report.Successful)))
	fmt.Fprintf(r.out, "Failed calls: %s\n", r.fail.Render(fmt.Sprint(report.Failed)))
	fmt.Fprintf(r.out, "Incomplete calls: %s\n", r.incomplete.Render(fmt.Sprint(report.Incomplete)))
	if report.Duplicates > 0 {
		fmt.Fprintf(r.out, "Duplicate endpoints skipped: %d\n", report.Duplicates)
	}
	if report.TransportErrors > 0 {
		fmt.Fprintf(r.out, "Transport errors: %d\n", report.TransportErrors)
	}
	if n := report.Regressions(); n > 0 {
		fmt.Fprintf(r.out, "Regressions since last run: %s\n", r.fail.Render(fmt.Sprint(n)))
		for _, c := range report.Changes {
			if c.Regression() {
				fmt.Fprintf(r.out, "  %s %s %s: %s -> %s\n", c.Category, c.Method, c.Endpoint, c.Before, c.After)
			}
		}
	}
	if report.Integrity.Matched() {
		fmt.Fprintf(r.out, "Endpoint counts matched. Initial and final count is %d.\n", report.Integrity.Catalog)
	} else {
		fmt.Fprintf(r.out, "%s\n", r.incomplete.Render("WARNING: "+report.Integrity.String()))
	}
}

// GenerateReport writes the report in every configured format
func (r *Reporter) GenerateReport(report Report) (string, error) {
	var written string
	for _, format := range r.config.Format {
		switch format {
		case "json":
			path, err := r.generateJSONReport(report)
			if err != nil {
				return "", fmt.Errorf("failed to generate JSON report: %w", err)
			}
			written = path
		case "none", "":
		default:
			return "", fmt.Errorf("unsupported report format %q", format)
		}
	}
	return written, nil
}

// generateJSONReport generates a JSON format report
func (r *Reporter) generateJSONReport(report Report) (string, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("report_%s.json", report.Timestamp.Format("20060102_150405"))
	if len(report.RunID) >= 8 {
		name = fmt.Sprintf("report_%s_%s.json", report.Timestamp.Format("20060102_150405"), report.RunID[:8])
	}
	reportPath := filepath.Join(r.config.OutputDir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return reportPath, os.WriteFile(reportPath, data, 0644)
}
