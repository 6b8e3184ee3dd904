package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"endpoint-prober/internal/catalog"
	"endpoint-prober/internal/clock"
	"endpoint-prober/internal/config"
	"endpoint-prober/internal/executor"
	"endpoint-prober/internal/history"
	"endpoint-prober/internal/ledger"
	"endpoint-prober/internal/reporter"
	"endpoint-prober/internal/resolver"
	"endpoint-prober/internal/session"
	"endpoint-prober/internal/types"
)

func newRunCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Test every catalog endpoint and persist the result ledger",
		Long: "run logs in, resolves the placeholders of every catalog endpoint, calls each " +
			"distinct endpoint once and atomically replaces the ledger with the results. " +
			"Individual endpoint failures do not change the exit status.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.setup()
			if err != nil {
				return err
			}
			defer log.Close()

			_, err = probe(cmd.Context(), cfg, clock.New(), log.Logger, cmd.OutOrStdout())
			return err
		},
	}
}

// probe runs one full pass: login, resolve, execute, persist, report.
// Only login, catalog loading and persistence errors abort it.
func probe(ctx context.Context, cfg *config.Config, clk clock.Clock, log *slog.Logger, out io.Writer) (reporter.Report, error) {
	started := clk.Now()
	runID := uuid.NewString()
	log = log.With("run_id", runID)

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return reporter.Report{}, fmt.Errorf("failed to load catalog: %w", err)
	}
	log.Info("loaded catalog", "path", cfg.Catalog.Path, "endpoints", cat.Count())

	httpClient, identity, err := session.Login(ctx, session.LoginOptions{
		BaseURL:   cfg.Environment.BaseURL,
		LoginPath: cfg.Environment.Auth.LoginPath,
		Timeout:   cfg.Test.Timeout,
	}, session.Credentials{
		Username: cfg.Environment.Auth.Username,
		Password: cfg.Environment.Auth.Password,
	})
	if err != nil {
		return reporter.Report{}, err
	}
	log.Info("logged in", "user_id", identity.UserID)

	client := session.NewPaced(httpClient, clk, cfg.Test.Pause)

	params := make(map[string]string, len(cfg.Parameters)+1)
	maps.Copy(params, cfg.Parameters)
	if identity.UserID != "" {
		params[cfg.Test.IdentityParam] = identity.UserID
	}

	res := resolver.New(client, resolver.Options{
		Parameters: params,
		Aliases:    cfg.Aliases,
		Lookups:    resolver.FieldLookups(cfg.Lookups),
		Logger:     log,
	})
	buckets, err := res.Resolve(ctx, cat)
	if err != nil {
		return reporter.Report{}, err
	}
	log.Info("resolved endpoints",
		"ready", buckets.Ready.Count(),
		"needs_parameters", buckets.NeedsParameters.Count(),
		"malformed", buckets.Malformed)

	rep := reporter.NewReporter(reporter.ReportingConfig{
		Format:    cfg.Reporting.Format,
		OutputDir: cfg.Reporting.OutputDir,
	}, out)
	exec := executor.NewTestExecutor(executor.TestConfig{
		Augmentations:       augmentations(cfg.Augmentations),
		SkipTransportErrors: cfg.Test.SkipTransportErrors,
		Verbose:             cfg.Test.Verbose,
	}, client, clk, log, rep)

	results, tally, err := exec.RunTests(ctx, buckets)
	if err != nil {
		return reporter.Report{}, err
	}

	previous, err := ledger.FromCatalog(cat)
	if err != nil {
		log.Warn("previous results unreadable, skipping comparison", "error", err)
		previous = types.NewTree[types.Outcome]()
	}

	store := ledger.NewStore(cfg.Ledger.Path, cfg.Ledger.KeepBackup)
	if err := store.Save(results); err != nil {
		return reporter.Report{}, err
	}
	log.Info("saved ledger", "path", store.Path(), "entries", results.Count())

	integrity := ledger.Integrity{
		Catalog:    cat.Count(),
		Ledger:     results.Count(),
		Malformed:  buckets.Malformed,
		Duplicates: tally.Duplicates,
		Skipped:    tally.Skipped,
	}
	if !integrity.Matched() {
		log.Warn(integrity.String())
	}

	report := reporter.NewReport(runID, cfg.Environment.BaseURL, started, clk.Now().Sub(started),
		tally, integrity, results, ledger.Diff(previous, results))
	rep.PrintSummary(report)

	path, err := rep.GenerateReport(report)
	if err != nil {
		log.Warn("failed to write report", "error", err)
	} else if path != "" {
		log.Info("report written", "path", path)
	}

	if cfg.History.Enabled() {
		recordHistory(ctx, cfg.History, report, log)
	}
	return report, nil
}

func augmentations(in []config.Augmentation) []executor.Augmentation {
	out := make([]executor.Augmentation, len(in))
	for i, a := range in {
		out[i] = executor.Augmentation{Marker: a.Marker, Headers: a.Headers, Query: a.Query}
	}
	return out
}

// recordHistory stores the run summary. A history failure never fails the run.
func recordHistory(ctx context.Context, cfg config.HistoryConfig, report reporter.Report, log *slog.Logger) {
	store, err := history.Open(ctx, historyConfig(cfg))
	if err != nil {
		log.Warn("run history unavailable", "error", err)
		return
	}
	defer store.Close()

	if err := store.Save(ctx, historyRecord(report)); err != nil {
		log.Warn("failed to record run history", "error", err)
	}
}

func historyConfig(cfg config.HistoryConfig) history.DBConfig {
	return history.DBConfig{
		Type:     cfg.Type,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		User:     cfg.User,
		Password: cfg.Password,
		Table:    cfg.Table,
	}
}

func historyRecord(report reporter.Report) history.Record {
	return history.Record{
		RunID:        report.RunID,
		StartedAt:    report.Timestamp,
		Duration:     report.Duration,
		BaseURL:      report.BaseURL,
		Successful:   report.Successful,
		Failed:       report.Failed,
		Incomplete:   report.Incomplete,
		Duplicates:   report.Duplicates,
		CatalogCount: report.Integrity.Catalog,
		LedgerCount:  report.Integrity.Ledger,
		Regressions:  report.Regressions(),
	}
}
