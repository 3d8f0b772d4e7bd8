package writers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/TFMV/mongoload/pkg/core"
)

// JSONWriter writes batches as a JSON array of objects, one per row.
type JSONWriter struct {
	file     *os.File
	encoder  *json.Encoder
	firstRow bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for JSON writer")
	}

	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON file: %w", err)
	}

	if _, err := file.WriteString("[\n"); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write opening bracket: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("  ", "  ")

	return &JSONWriter{
		file:     file,
		encoder:  encoder,
		firstRow: true,
	}, nil
}

// Write writes a record to the file.
func (w *JSONWriter) Write(ctx context.Context, record arrow.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	schema := record.Schema()
	cols := make([]*array.String, record.NumCols())
	for j := range cols {
		col, ok := record.Column(j).(*array.String)
		if !ok {
			return fmt.Errorf("column %s has type %s, want utf8", schema.Field(j).Name, record.Column(j).DataType())
		}
		cols[j] = col
	}

	for i := 0; i < int(record.NumRows()); i++ {
		row := make(map[string]any, len(cols))
		for j, col := range cols {
			if col.IsNull(i) {
				row[schema.Field(j).Name] = nil
				continue
			}
			row[schema.Field(j).Name] = col.Value(i)
		}

		if !w.firstRow {
			if _, err := w.file.WriteString(",\n"); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		} else {
			w.firstRow = false
		}

		if err := w.encoder.Encode(row); err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
	}

	return nil
}

// Close closes the writer and flushes any pending data.
func (w *JSONWriter) Close() error {
	var err error

	if _, closeErr := w.file.WriteString("]\n"); closeErr != nil {
		err = closeErr
	}

	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}
