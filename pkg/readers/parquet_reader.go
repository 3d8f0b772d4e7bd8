package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/TFMV/mongoload/pkg/core"
)

// recordIDColumn names the identifier column written by working-set dumps.
const recordIDColumn = "record_id"

// ParquetReader reads a Parquet file as a sample, so a dumped working set
// can seed later runs. A leading record_id column supplies the record IDs
// and is not a field. Otherwise the first column is the ID, as with CSV.
// Non-string columns are rendered with their Arrow string form; nulls are
// left out of the record.
type ParquetReader struct {
	path       string
	file       *os.File
	fileReader *file.Reader
	alloc      memory.Allocator
}

// NewParquetReader creates a new Parquet sample reader.
func NewParquetReader(config core.ReaderConfig) (core.SampleReader, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Parquet reader")
	}

	f, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Parquet file: %w", core.ErrFileRead, err)
	}

	pr, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to create Parquet file reader: %w", core.ErrFileRead, err)
	}

	return &ParquetReader{
		path:       config.Path,
		file:       f,
		fileReader: pr,
		alloc:      memory.NewGoAllocator(),
	}, nil
}

// Read loads every row group into a sample set.
func (r *ParquetReader) Read(ctx context.Context) (*core.SampleSet, error) {
	if r.fileReader == nil {
		return nil, fmt.Errorf("%w: reader is closed", core.ErrFileRead)
	}

	arrowReader, err := pqarrow.NewFileReader(r.fileReader, pqarrow.ArrowReadProperties{
		Parallel:  true,
		BatchSize: defaultChunkSize,
	}, r.alloc)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Arrow reader: %w", core.ErrFileRead, err)
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get schema: %w", core.ErrFileRead, err)
	}
	if schema.NumFields() == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", core.ErrFileRead, r.path)
	}

	// Column 0 supplies record IDs; fieldStart is the first field column.
	fieldStart := 0
	if schema.Field(0).Name == recordIDColumn {
		fieldStart = 1
	}

	columns := make([]string, 0, schema.NumFields()-fieldStart)
	for _, f := range schema.Fields()[fieldStart:] {
		columns = append(columns, f.Name)
	}
	header, err := normalizeHeader(columns)
	if err != nil {
		return nil, err
	}

	rr, err := arrowReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read row groups: %w", core.ErrFileRead, err)
	}
	defer rr.Release()

	set := &core.SampleSet{Header: header}
	for rr.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		set.Records = append(set.Records, recordsFromColumns(header, rr.Record(), fieldStart)...)
	}
	if err := rr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", core.ErrFileRead, err)
	}

	return set, nil
}

func recordsFromColumns(header []string, batch arrow.Record, fieldStart int) []core.Record {
	ids := batch.Column(0)
	records := make([]core.Record, 0, batch.NumRows())
	for row := 0; row < int(batch.NumRows()); row++ {
		rec := core.Record{Fields: make(map[string]string, len(header))}
		if ids.IsValid(row) {
			rec.ID = strings.TrimSpace(ids.ValueStr(row))
		}
		for i, name := range header {
			col := batch.Column(fieldStart + i)
			if col.IsNull(row) {
				continue
			}
			rec.Fields[name] = strings.TrimSpace(col.ValueStr(row))
		}
		records = append(records, rec)
	}
	return records
}

// Close closes the reader and releases resources.
func (r *ParquetReader) Close() error {
	if r.fileReader == nil {
		return nil
	}
	err := r.fileReader.Close()
	r.fileReader = nil
	if r.file != nil {
		// file.Reader closes the source it was given.
		if closeErr := r.file.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}
