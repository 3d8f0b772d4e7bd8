package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/TFMV/mongoload/metrics"
	"github.com/TFMV/mongoload/pkg/core"
)

// TextSummary writes the console summary of a run. A failed run ends with
// a line naming the stage and the underlying message.
func TextSummary(w io.Writer, run metrics.BenchmarkReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Run\t%s\n", run.RunID)
	fmt.Fprintf(tw, "Target\t%s %s %s.%s\n", run.Target.Backend, run.Target.Address, run.Target.Database, run.Target.Collection)
	fmt.Fprintf(tw, "Sample\t%s records from %s\n", humanize.Comma(int64(run.Workload.SampleRecords)), run.Workload.SamplePath)
	fmt.Fprintf(tw, "Working set\t%s records\n", humanize.Comma(int64(run.Workload.WorkingSetSize)))
	fmt.Fprintf(tw, "Mode\t%s\n", describeSettings(run.Settings))
	fmt.Fprintf(tw, "Inserted\t%s of %s (%s failed)\n",
		humanize.Comma(int64(run.Insert.Inserted)),
		humanize.Comma(int64(run.Insert.Attempted)),
		humanize.Comma(int64(run.Insert.Failed)))
	fmt.Fprintf(tw, "Elapsed\t%s (%d ns)\n", run.Insert.Elapsed(), run.Insert.ElapsedNanos)
	fmt.Fprintf(tw, "Throughput\t%s records/s\n", formatRate(run.Insert.RecordsPerSecond))
	fmt.Fprintf(tw, "Status\t%s\n", run.Status)
	if err := tw.Flush(); err != nil {
		return err
	}

	if !run.Passed() {
		_, err := fmt.Fprintf(w, "Failed at %s stage: %s\n", run.FailedStage, run.Error)
		return err
	}
	return nil
}

// formatRate renders a rate with thousands separators and one decimal.
// CommafWithDigits truncates, so the value is rounded first.
func formatRate(f float64) string {
	return humanize.CommafWithDigits(math.Round(f*10)/10, 1)
}

func describeSettings(s metrics.InsertSettings) string {
	switch s.Mode {
	case core.Sequential:
		d := fmt.Sprintf("sequential, concurrency %d", s.Concurrency)
		if s.Delay > 0 {
			d += fmt.Sprintf(", delay %s", s.Delay)
		}
		return d
	default:
		if s.BatchSize > 0 {
			return fmt.Sprintf("batch, %s records per bulk write", humanize.Comma(int64(s.BatchSize)))
		}
		return "batch, single bulk write"
	}
}

// HistoryTable writes one line per run, newest first as given.
func HistoryTable(w io.Writer, runs []metrics.BenchmarkReport, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tMODE\tINSERTED\tELAPSED\tRECORDS/S\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID,
			humanize.RelTime(r.StartTime, now, "ago", "from now"),
			r.Settings.Mode,
			humanize.Comma(int64(r.Insert.Inserted)),
			r.Insert.Elapsed().Round(time.Millisecond),
			formatRate(r.Insert.RecordsPerSecond),
			r.Status)
	}
	return tw.Flush()
}
