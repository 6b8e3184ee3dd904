package executor

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"endpoint-prober/internal/catalog"
	"endpoint-prober/internal/clock"
	"endpoint-prober/internal/resolver"
	"endpoint-prober/internal/session"
	"endpoint-prober/internal/types"
)

// TransportErrorCode is the error_code recorded when a call never got a response
const TransportErrorCode = "transport_error"

// Augmentation adds headers and query parameters to paths containing Marker
type Augmentation struct {
	Marker  string
	Headers map[string]string
	Query   map[string]string
}

// TestConfig holds configuration for test execution
type TestConfig struct {
	Augmentations []Augmentation
	// SkipTransportErrors drops endpoints whose call failed before a response
	// instead of recording them as Failed
	SkipTransportErrors bool
	// Verbose logs response bodies at debug level
	Verbose bool
}

// Observer is told about every outcome as it is recorded
type Observer interface {
	Record(category, method string, outcome types.Outcome)
}

// Tally accumulates the counts of one run
type Tally struct {
	Successful      int
	Failed          int
	Incomplete      int
	Duplicates      int
	TransportErrors int
	Skipped         int
	Calls           int
}

// Recorded returns the number of ledger entries the run produced
func (t Tally) Recorded() int {
	return t.Successful + t.Failed + t.Incomplete
}

func (t *Tally) add(result types.TestResult) {
	switch result {
	case types.Successful:
		t.Successful++
	case types.Failed:
		t.Failed++
	case types.Incomplete:
		t.Incomplete++
	}
}

// TestExecutor handles the execution of API tests. Calls are strictly
// sequential; pacing between calls belongs to the client (see session.Paced).
type TestExecutor struct {
	config   TestConfig
	client   session.Client
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer
}

// NewTestExecutor creates a new test executor
func NewTestExecutor(config TestConfig, client session.Client, clk clock.Clock, logger *slog.Logger, observer Observer) *TestExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TestExecutor{
		config:   config,
		client:   client,
		clock:    clk,
		logger:   logger,
		observer: observer,
	}
}

// RunTests calls every target once, ready bucket first, and returns the
// ledger with its tally. Targets whose path was already seen this run are
// skipped. It only fails when ctx is done.
func (e *TestExecutor) RunTests(ctx context.Context, buckets *resolver.Buckets) (*types.Ledger, Tally, error) {
	ledger := types.NewTree[types.Outcome]()
	seen := make(map[string]bool)
	var tally Tally

	for _, tree := range []*types.Tree[resolver.Target]{buckets.Ready, buckets.NeedsParameters} {
		for _, cat := range tree.Categories() {
			e.logger.Info("testing category", "category", cat.Name)
			for _, group := range cat.Methods {
				for _, target := range group.Items {
					if err := ctx.Err(); err != nil {
						return nil, tally, err
					}
					if seen[target.Path] {
						tally.Duplicates++
						e.logger.Debug("skip duplicate endpoint", "endpoint", target.Path, "method", group.Method)
						continue
					}
					seen[target.Path] = true

					outcome, ok, err := e.executeTest(ctx, group.Method, target, &tally)
					if err != nil {
						return nil, tally, err
					}
					if !ok {
						continue
					}
					tally.add(outcome.Result)
					ledger.Append(cat.Name, group.Method, outcome)
					if e.observer != nil {
						e.observer.Record(cat.Name, group.Method, outcome)
					}
				}
			}
		}
	}
	return ledger, tally, nil
}

// executeTest runs one target. ok is false when the target produced no
// ledger entry (a skipped transport error).
func (e *TestExecutor) executeTest(ctx context.Context, method string, target resolver.Target, tally *Tally) (types.Outcome, bool, error) {
	outcome := types.Outcome{
		Endpoint: target.Path,
		Fields:   catalog.WithTemplate(target.Entry.Fields, target.Template, target.Path),
	}

	// Residual placeholders mean the path is not callable this run
	if resolver.HasPlaceholders(target.Path) {
		outcome.Result = types.Incomplete
		outcome.TestDate = e.clock.Now()
		return outcome, true, nil
	}

	req := e.buildRequest(method, target.Path)
	tally.Calls++
	resp, err := e.client.Do(ctx, req)
	outcome.TestDate = e.clock.Now()
	if err != nil {
		if ctx.Err() != nil {
			return outcome, false, ctx.Err()
		}
		tally.TransportErrors++
		e.logger.Warn("request failed", "endpoint", target.Path, "method", method, "error", err)
		if e.config.SkipTransportErrors {
			tally.Skipped++
			return outcome, false, nil
		}
		outcome.Result = types.Failed
		outcome.FailureDetails = &types.FailureDetails{
			ErrorCode: TransportErrorCode,
			Message:   err.Error(),
		}
		return outcome, true, nil
	}

	if e.config.Verbose {
		e.logger.Debug("response content", "endpoint", target.Path, "status", resp.StatusCode, "body", string(resp.Body))
	}

	outcome.Result, outcome.FailureDetails = Classify(resp)
	return outcome, true, nil
}

// buildRequest creates the request for path, applying every augmentation
// whose marker occurs in the path
func (e *TestExecutor) buildRequest(method, path string) session.Request {
	req := session.Request{
		Method: strings.ToUpper(method),
		Path:   path,
		Header: http.Header{},
		Query:  url.Values{},
	}
	for _, a := range e.config.Augmentations {
		if !strings.Contains(path, a.Marker) {
			continue
		}
		for key, value := range a.Headers {
			req.Header.Set(key, value)
		}
		for key, value := range a.Query {
			req.Query.Set(key, value)
		}
	}
	return req
}
