package writers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/TFMV/mongoload/pkg/core"
)

var codecs = map[string]compress.Compression{
	"":       compress.Codecs.Snappy,
	"snappy": compress.Codecs.Snappy,
	"zstd":   compress.Codecs.Zstd,
	"gzip":   compress.Codecs.Gzip,
	"none":   compress.Codecs.Uncompressed,
}

// ParquetWriter writes batches to a Parquet file.
type ParquetWriter struct {
	writer *pqarrow.FileWriter
	file   *os.File
	props  *parquet.WriterProperties
}

// NewParquetWriter creates a new Parquet writer.
func NewParquetWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Parquet writer")
	}
	codec, ok := codecs[config.Compression]
	if !ok {
		return nil, fmt.Errorf("unsupported parquet compression: %s", config.Compression)
	}

	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet file: %w", err)
	}

	// Working sets repeat a handful of sample values, so dictionary encoding stays on.
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(true),
	)

	return &ParquetWriter{file: file, props: props}, nil
}

// Write appends a batch as a new row group.
func (w *ParquetWriter) Write(ctx context.Context, record arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if w.writer == nil {
		writer, err := pqarrow.NewFileWriter(record.Schema(), w.file, w.props, pqarrow.NewArrowWriterProperties())
		if err != nil {
			return fmt.Errorf("failed to create Parquet writer: %w", err)
		}
		w.writer = writer
	}

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

// Close writes the footer. The Parquet writer closes the file itself once
// it has been created.
func (w *ParquetWriter) Close() error {
	if w.writer == nil {
		return w.file.Close()
	}
	err := w.writer.Close()
	if closeErr := w.file.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && err == nil {
		err = closeErr
	}
	return err
}
