package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/TFMV/mongoload/pkg/core"
)

// -----------------------------
// Domain Types & Metadata
// -----------------------------

// RunStatus is the outcome of a benchmark run.
type RunStatus string

const (
	Succeeded RunStatus = "succeeded"
	Failed    RunStatus = "failed"
)

// TargetMetadata describes where records were written.
type TargetMetadata struct {
	Backend     string      `json:"backend"`
	Address     string      `json:"address"`
	Database    string      `json:"database"`
	Collection  string      `json:"collection"`
	Capped      bool        `json:"capped"`
	SizeBytes   int64       `json:"size_bytes,omitempty"`
	AutoIndexID bool        `json:"auto_index_id"`
	IDMode      core.IDMode `json:"id_mode"`
}

// WorkloadMetadata describes the records that were generated.
type WorkloadMetadata struct {
	SamplePath     string         `json:"sample_path"`
	Reader         string         `json:"reader"`
	RowPolicy      core.RowPolicy `json:"row_policy"`
	Fields         []string       `json:"fields"`
	SampleRecords  int            `json:"sample_records"`
	TargetCount    int            `json:"target_count"`
	WorkingSetSize int            `json:"working_set_size"`
	Seed           int64          `json:"seed"`
	UniqueIDs      bool           `json:"unique_ids"`
}

// InsertSettings records how the insertion pass was driven.
type InsertSettings struct {
	Mode        core.InsertMode `json:"mode"`
	BatchSize   int             `json:"batch_size"`
	Concurrency int             `json:"concurrency"`
	Delay       time.Duration   `json:"delay"`
}

// -----------------------------
// Benchmark Result Types
// -----------------------------

// InsertMetrics is the timed outcome of the insertion pass.
type InsertMetrics struct {
	Attempted        int                  `json:"attempted"`
	Inserted         int                  `json:"inserted"`
	Failed           int                  `json:"failed"`
	ElapsedNanos     int64                `json:"elapsed_ns"`
	RecordsPerSecond float64              `json:"records_per_second"`
	Failures         []core.InsertFailure `json:"failures,omitempty"`
}

// NewInsertMetrics converts an insertion result to its reported form.
func NewInsertMetrics(r core.InsertResult) InsertMetrics {
	return InsertMetrics{
		Attempted:        r.Attempted,
		Inserted:         r.Inserted,
		Failed:           r.Failed,
		ElapsedNanos:     r.ElapsedNanos(),
		RecordsPerSecond: r.RecordsPerSecond(),
		Failures:         r.Failures,
	}
}

// Elapsed returns the insertion time as a duration.
func (m InsertMetrics) Elapsed() time.Duration {
	return time.Duration(m.ElapsedNanos)
}

// BenchmarkReport aggregates everything known about one run.
type BenchmarkReport struct {
	RunID       string           `json:"run_id"`
	Version     string           `json:"version"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
	Duration    time.Duration    `json:"duration"`
	Target      TargetMetadata   `json:"target"`
	Workload    WorkloadMetadata `json:"workload"`
	Settings    InsertSettings   `json:"settings"`
	Insert      InsertMetrics    `json:"insert"`
	Status      RunStatus        `json:"status"`
	FailedStage core.Stage       `json:"failed_stage,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Passed reports whether the run completed without a stage fault.
func (r BenchmarkReport) Passed() bool {
	return r.Status == Succeeded
}

// -----------------------------
// Metrics Storage
// -----------------------------

// MetricsStore abstracts benchmark report storage.
type MetricsStore interface {
	Save(run BenchmarkReport) error
	SaveWithContext(ctx context.Context, run BenchmarkReport) error
}

// JSONMetricsStore stores results as JSON. With no FilePath the report is
// written to Writer, or to stdout when Writer is nil.
type JSONMetricsStore struct {
	FilePath string
	Writer   io.Writer
}

func (j *JSONMetricsStore) Save(run BenchmarkReport) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	if j.FilePath != "" {
		return os.WriteFile(j.FilePath, data, 0644)
	}
	w := j.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func (j *JSONMetricsStore) SaveWithContext(ctx context.Context, run BenchmarkReport) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return j.Save(run)
	}
}
