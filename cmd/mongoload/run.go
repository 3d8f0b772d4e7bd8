package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/mongoload/bench"
	"github.com/TFMV/mongoload/config"
	"github.com/TFMV/mongoload/logger"
	"github.com/TFMV/mongoload/metrics"
	"github.com/TFMV/mongoload/report"
)

// newRunCommand creates the run command.
func newRunCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [SAMPLE]",
		Short: "Run one insertion benchmark",
		Long: `The run command connects to the target, prepares the collection, expands the
sample file to the target count and times the insertion of the working set.

Examples:
  mongoload run --count 100000 zips.csv
  mongoload run --mode sequential --concurrency 8 --delay 2ms zips.csv
  mongoload run --backend memory --dump working.parquet --dump-format parquet zips.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				c.v.Set("workload.sample_path", args[0])
			}
			cfg, err := c.loadConfig(true)
			if err != nil {
				return err
			}
			log, err := c.setupLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return c.runBenchmark(ctx, cfg, log)
		},
	}

	f := cmd.Flags()
	f.String("backend", "", "Storage backend (mongo, memory)")
	f.String("uri", "", "MongoDB connection URI")
	f.String("database", "", "Database name")
	f.String("collection", "", "Collection name")
	f.Duration("connect-timeout", 0, "Connection timeout")
	f.Bool("capped", false, "Create the collection as capped")
	f.Int64("size-bytes", 0, "Capped collection size in bytes")
	f.Int64("max-documents", 0, "Capped collection document limit")
	f.Bool("auto-index-id", true, "Create the collection with an automatic _id index")
	f.Bool("clear", true, "Remove existing documents before inserting")
	f.String("id-mode", "", "Document _id source (auto, record)")
	f.String("sample", "", "Sample CSV file")
	f.String("reader", "", "Sample reader (csv, arrow)")
	f.String("row-policy", "", "Malformed row handling (lenient, strict)")
	f.IntP("count", "n", 0, "Target record count")
	f.Int64("seed", 0, "Random seed for duplicate selection (0 seeds from the clock)")
	f.Bool("unique-ids", false, "Give duplicated records unique IDs")
	f.StringP("mode", "m", "", "Insertion mode (batch, sequential)")
	f.IntP("batch-size", "b", 0, "Records per bulk write (0 writes the working set at once)")
	f.IntP("concurrency", "p", 0, "In-flight inserts in sequential mode")
	f.Duration("delay", 0, "Delay between sequential submissions")
	f.Duration("timeout", 0, "Overall run timeout")
	f.String("report-json", "", "Write the JSON report to this path")
	f.String("report-html", "", "Write the HTML report to this path")
	f.String("dump", "", "Write the expanded working set to this path")
	f.String("dump-format", "", "Working set dump format (json, arrow, parquet)")

	for key, flag := range map[string]string{
		"backend":                  "backend",
		"mongo.uri":                "uri",
		"mongo.database":           "database",
		"mongo.collection":         "collection",
		"mongo.connect_timeout":    "connect-timeout",
		"collection.capped":        "capped",
		"collection.size_bytes":    "size-bytes",
		"collection.max_documents": "max-documents",
		"collection.auto_index_id": "auto-index-id",
		"collection.clear":         "clear",
		"collection.id_mode":       "id-mode",
		"workload.sample_path":     "sample",
		"workload.reader":          "reader",
		"workload.row_policy":      "row-policy",
		"workload.target_count":    "count",
		"workload.seed":            "seed",
		"workload.unique_ids":      "unique-ids",
		"insert.mode":              "mode",
		"insert.batch_size":        "batch-size",
		"insert.concurrency":       "concurrency",
		"insert.delay":             "delay",
		"insert.timeout":           "timeout",
		"output.report_json":       "report-json",
		"output.report_html":       "report-html",
		"output.dump_path":         "dump",
		"output.dump_format":       "dump-format",
	} {
		c.bind(cmd, key, flag)
	}

	return cmd
}

// runBenchmark executes one run and prints its summary. A failed run
// returns errRunFailed once the summary names the failing stage.
func (c *cli) runBenchmark(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var opts []bench.Option
	if cfg.Output.HistoryPath != "" {
		history, err := metrics.OpenBoltHistoryStore(cfg.Output.HistoryPath)
		if err != nil {
			return err
		}
		defer history.Close()
		opts = append(opts, bench.WithStores(history))
	}

	s := newSpinner(c.stderr, c.quiet)
	s.Start()
	rep, err := bench.NewRunner(cfg, log, opts...).Run(ctx)
	s.Stop()

	fmt.Fprintln(c.stdout)
	if sumErr := report.TextSummary(c.stdout, rep); sumErr != nil {
		log.Warn("Failed to print summary", zap.Error(sumErr))
	}

	if err != nil {
		if rep.Passed() {
			return err
		}
		return errRunFailed
	}
	return nil
}

// progress is the part of the spinner the run command drives.
type progress interface {
	Start()
	Stop()
}

type noProgress struct{}

func (noProgress) Start() {}
func (noProgress) Stop()  {}

func newSpinner(w io.Writer, quiet bool) progress {
	if quiet {
		return noProgress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " running benchmark"
	return s
}
