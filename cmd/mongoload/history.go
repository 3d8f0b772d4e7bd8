package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TFMV/mongoload/metrics"
	"github.com/TFMV/mongoload/report"
)

var errNoHistory = errors.New("history is not configured: set output.history_path or --history")

// newHistoryCommand creates the history command and its show subcommand.
func newHistoryCommand(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous benchmark runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(c.stdout, "No runs recorded.")
				return nil
			}
			return report.HistoryTable(c.stdout, runs, time.Now())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of runs to list (0 for all)")

	cmd.AddCommand(newHistoryShowCommand(c))

	return cmd
}

// newHistoryShowCommand prints one report, either from history by run ID or
// from a report file written by output.report_json.
func newHistoryShowCommand(c *cli) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "show [RUN_ID]",
		Short: "Print one stored report as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				run metrics.BenchmarkReport
				err error
			)
			switch {
			case file != "" && len(args) > 0:
				return errors.New("give either a run ID or --file, not both")
			case file != "":
				run, err = report.ReportFromFilePath(file)
			case len(args) == 1:
				run, err = c.loadRun(args[0])
			default:
				return errors.New("a run ID or --file is required")
			}
			if err != nil {
				return err
			}
			return (&metrics.JSONMetricsStore{Writer: c.stdout}).Save(run)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the report from a JSON report file instead of history")

	return cmd
}

func (c *cli) loadRun(runID string) (metrics.BenchmarkReport, error) {
	store, err := c.openHistory()
	if err != nil {
		return metrics.BenchmarkReport{}, err
	}
	defer store.Close()
	return store.Get(runID)
}

func (c *cli) openHistory() (*metrics.BoltHistoryStore, error) {
	cfg, err := c.loadConfig(false)
	if err != nil {
		return nil, err
	}
	if cfg.Output.HistoryPath == "" {
		return nil, errNoHistory
	}
	return metrics.OpenBoltHistoryStore(cfg.Output.HistoryPath)
}
