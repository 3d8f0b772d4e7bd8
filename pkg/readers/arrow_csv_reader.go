package readers

import (
	"context"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/mongoload/pkg/core"
)

// defaultChunkSize is the number of rows per Arrow record batch.
const defaultChunkSize = 4096

// ArrowCSVReader reads quoted CSV sample files through the Arrow CSV reader.
// Every column is read as a string. Rows must match the header width, so this
// reader is always strict regardless of the configured policy.
type ArrowCSVReader struct {
	path  string
	file  *os.File
	alloc memory.Allocator
}

// NewArrowCSVReader creates a new Arrow-backed CSV reader.
func NewArrowCSVReader(config core.ReaderConfig) (core.SampleReader, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Arrow CSV reader")
	}

	file, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open CSV file: %w", core.ErrFileRead, err)
	}

	return &ArrowCSVReader{
		path:  config.Path,
		file:  file,
		alloc: memory.NewGoAllocator(),
	}, nil
}

// readHeader parses the first record of the file and rewinds it.
func (r *ArrowCSVReader) readHeader() ([]string, error) {
	hr := stdcsv.NewReader(r.file)
	hr.LazyQuotes = true
	columns, err := hr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s has no header line", core.ErrFileRead, r.path)
		}
		return nil, fmt.Errorf("%w: failed to read CSV header: %w", core.ErrFileRead, err)
	}
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: failed to rewind CSV file: %w", core.ErrFileRead, err)
	}
	return normalizeHeader(columns)
}

// Read parses the whole file into a sample set.
func (r *ArrowCSVReader) Read(ctx context.Context) (*core.SampleSet, error) {
	if r.file == nil {
		return nil, fmt.Errorf("%w: reader is closed", core.ErrFileRead)
	}

	header, err := r.readHeader()
	if err != nil {
		return nil, err
	}

	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: false}
	}
	schema := arrow.NewSchema(fields, nil)

	reader := csv.NewReader(
		r.file,
		schema,
		csv.WithHeader(true),
		csv.WithLazyQuotes(true),
		csv.WithChunk(defaultChunkSize),
		csv.WithAllocator(r.alloc),
	)
	defer reader.Release()

	set := &core.SampleSet{Header: header}
	row := 1
	for reader.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		batch := reader.Record()
		records, err := recordsFromBatch(header, batch, row)
		if err != nil {
			return nil, err
		}
		set.Records = append(set.Records, records...)
		row += int(batch.NumRows())
	}

	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrMalformedRow, err)
	}

	return set, nil
}

// recordsFromBatch converts one all-string Arrow batch into records.
// firstRow is the 1-based data row number of the batch's first row.
func recordsFromBatch(header []string, batch arrow.Record, firstRow int) ([]core.Record, error) {
	cols := make([]*array.String, batch.NumCols())
	for i := range cols {
		col, ok := batch.Column(i).(*array.String)
		if !ok {
			return nil, fmt.Errorf("column %q is %s, expected string", batch.ColumnName(i), batch.Column(i).DataType())
		}
		cols[i] = col
	}

	records := make([]core.Record, 0, batch.NumRows())
	for row := 0; row < int(batch.NumRows()); row++ {
		values := make([]string, len(cols))
		for c, col := range cols {
			values[c] = col.Value(row)
		}
		rec, err := buildRecord(header, values, core.Strict, firstRow+row+1)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close closes the reader and releases resources.
func (r *ArrowCSVReader) Close() error {
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
