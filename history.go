package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"endpoint-prober/internal/history"
)

func newHistoryCommand(global *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := global.setup()
			if err != nil {
				return err
			}
			defer log.Close()

			if !cfg.History.Enabled() {
				return errors.New("no history database configured (history.type)")
			}
			store, err := history.Open(cmd.Context(), historyConfig(cfg.History))
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func printHistory(out io.Writer, records []history.Record) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tOK\tFAILED\tINCOMPLETE\tDUPLICATES\tCATALOG\tLEDGER\tREGRESSIONS")
	for _, r := range records {
		runID := r.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			runID, r.StartedAt.Local().Format(time.DateTime), r.Duration.Round(time.Second),
			r.Successful, r.Failed, r.Incomplete, r.Duplicates,
			r.CatalogCount, r.LedgerCount, r.Regressions)
	}
	w.Flush()
}
