// Package core provides the core types and interfaces for the mongoload benchmark tool.
package core

import (
	"context"
	"maps"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// Record is one document of synthetic load.
type Record struct {
	// ID is taken from the first column of the sample row.
	ID string

	// Fields maps normalized header names to trimmed values.
	Fields map[string]string
}

// Clone returns a deep copy of the record. The copy shares no mutable state with r.
func (r Record) Clone() Record {
	return Record{
		ID:     r.ID,
		Fields: maps.Clone(r.Fields),
	}
}

// SampleSet is the template data parsed once from the sample file.
type SampleSet struct {
	// Header holds the normalized field names in file order.
	Header []string

	// Records holds one record per data line.
	Records []Record
}

// Len returns the number of sample records.
func (s *SampleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// RowPolicy controls how rows whose value count differs from the header are handled.
type RowPolicy string

const (
	// Lenient leaves missing trailing fields absent and ignores surplus values.
	Lenient RowPolicy = "lenient"
	// Strict rejects any row whose value count differs from the header.
	Strict RowPolicy = "strict"
)

// IDMode decides whether Record.ID becomes the document identifier.
type IDMode string

const (
	// IDAuto lets the backend assign document identifiers.
	IDAuto IDMode = "auto"
	// IDRecord uses Record.ID as the document identifier.
	IDRecord IDMode = "record"
)

// InsertMode selects the insertion strategy.
type InsertMode string

const (
	// Batch submits records as bulk writes; any fault aborts the run.
	Batch InsertMode = "batch"
	// Sequential submits records one at a time; faults are logged and skipped.
	Sequential InsertMode = "sequential"
)

// InsertFailure describes one record that could not be inserted in sequential mode.
type InsertFailure struct {
	RecordID string `json:"record_id"`
	Error    string `json:"error"`
}

// InsertResult reports the outcome of a timed insertion pass.
type InsertResult struct {
	// Mode is the strategy that produced the result.
	Mode InsertMode

	// Attempted is the number of records submitted.
	Attempted int

	// Inserted is the number of records acknowledged by the backend.
	Inserted int

	// Failed is the number of records rejected by the backend.
	Failed int

	// Elapsed spans the first submission to the last acknowledgment.
	Elapsed time.Duration

	// Failures lists the rejected records.
	Failures []InsertFailure
}

// ElapsedNanos returns the elapsed time in nanoseconds.
func (r InsertResult) ElapsedNanos() int64 {
	return r.Elapsed.Nanoseconds()
}

// RecordsPerSecond returns the insertion throughput, or 0 if no time elapsed.
func (r InsertResult) RecordsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Inserted) / r.Elapsed.Seconds()
}

// SampleReader reads a sample file into a SampleSet.
type SampleReader interface {
	// Read parses the whole sample.
	Read(ctx context.Context) (*SampleSet, error)

	// Close releases the underlying file.
	Close() error
}

// Collection is the storage target of a benchmark run.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// InsertMany writes records as one bulk operation and returns how many were acknowledged.
	InsertMany(ctx context.Context, records []Record) (int, error)

	// InsertOne writes a single record.
	InsertOne(ctx context.Context, record Record) error

	// Count returns the number of documents in the collection.
	Count(ctx context.Context) (int64, error)
}

// DatasetWriter writes Arrow record batches to a destination.
type DatasetWriter interface {
	// Write writes a record batch to the destination.
	Write(ctx context.Context, record arrow.Record) error

	// Close closes the writer and flushes any pending data.
	Close() error
}

// ReaderConfig provides configuration for creating a sample reader.
type ReaderConfig struct {
	// Type is the type of the reader.
	Type string

	// Path is the path to the sample file.
	Path string

	// Policy decides how malformed rows are treated.
	Policy RowPolicy
}

// WriterConfig provides configuration for creating a working-set dump writer.
type WriterConfig struct {
	// Type is the type of the writer.
	Type string

	// Path is the path to the output file.
	Path string

	// Compression names the Parquet codec: "snappy" (default), "zstd", "gzip" or "none".
	Compression string
}
