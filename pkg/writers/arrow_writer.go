package writers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/TFMV/mongoload/pkg/core"
)

// ArrowWriter writes batches to an Arrow IPC file. The schema is taken from
// the first batch; later batches must match it.
type ArrowWriter struct {
	writer *ipc.FileWriter
	file   *os.File
	schema *arrow.Schema
}

// NewArrowWriter creates a new Arrow IPC writer.
func NewArrowWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Arrow writer")
	}

	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow file: %w", err)
	}

	return &ArrowWriter{file: file}, nil
}

// Write appends a batch to the file.
func (w *ArrowWriter) Write(ctx context.Context, record arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if w.writer == nil {
		writer, err := ipc.NewFileWriter(w.file, ipc.WithSchema(record.Schema()))
		if err != nil {
			return fmt.Errorf("failed to create Arrow writer: %w", err)
		}
		w.writer = writer
		w.schema = record.Schema()
	} else if !w.schema.Equal(record.Schema()) {
		return fmt.Errorf("schema mismatch: got %s, want %s", record.Schema(), w.schema)
	}

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

// Close writes the file footer and closes the file.
func (w *ArrowWriter) Close() error {
	var errs []error
	if w.writer != nil {
		errs = append(errs, w.writer.Close())
	}
	errs = append(errs, w.file.Close())
	return errors.Join(errs...)
}
