package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"endpoint-prober/internal/config"
	"endpoint-prober/internal/logger"
)

// globalOptions are the flags shared by every command
type globalOptions struct {
	configPath string
	logLevel   string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "endpoint-prober",
		Short:         "Probe every endpoint of an API catalog and keep a result ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Path to configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log response bodies")

	root.AddCommand(
		newRunCommand(opts),
		newImportCommand(opts),
		newHistoryCommand(opts),
	)
	return root
}

// setup loads the configuration and builds the logger the commands share
func (o *globalOptions) setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.verbose {
		cfg.Test.Verbose = true
		if o.logLevel == "" {
			cfg.Logging.Level = "debug"
		}
	}

	log, err := logger.NewLogger(logger.Options{
		Level:  cfg.Logging.Level,
		LogDir: cfg.Logging.LogDir,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}
