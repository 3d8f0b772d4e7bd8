package writers

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/mongoload/pkg/core"
)

// RecordIDField is the column holding each record's identifier.
const RecordIDField = "record_id"

// DefaultBatchSize is the number of records per Arrow batch when Dump is given none.
const DefaultBatchSize = 4096

// Schema returns a nullable string schema: the record ID column followed by
// one column per header field.
func Schema(header []string) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(header)+1)
	fields = append(fields, arrow.Field{Name: RecordIDField, Type: arrow.BinaryTypes.String})
	for _, name := range header {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// BuildRecord converts records to an Arrow batch. Fields absent from a
// record become nulls. The caller must release the result.
func BuildRecord(alloc memory.Allocator, schema *arrow.Schema, records []core.Record) arrow.Record {
	b := array.NewRecordBuilder(alloc, schema)
	defer b.Release()

	ids := b.Field(0).(*array.StringBuilder)
	ids.Reserve(len(records))
	for _, r := range records {
		ids.Append(r.ID)
	}

	for i := 1; i < schema.NumFields(); i++ {
		name := schema.Field(i).Name
		col := b.Field(i).(*array.StringBuilder)
		col.Reserve(len(records))
		for _, r := range records {
			if v, ok := r.Fields[name]; ok {
				col.Append(v)
			} else {
				col.AppendNull()
			}
		}
	}

	return b.NewRecord()
}

// Dump writes records to w in batches of batchSize and closes w. An empty
// working set still writes one empty batch so the output carries the schema.
func Dump(ctx context.Context, w core.DatasetWriter, header []string, records []core.Record, batchSize int) (err error) {
	defer func() {
		if closeErr := w.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close writer: %w", closeErr)
		}
	}()

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	alloc := memory.NewGoAllocator()
	schema := Schema(header)

	for start := 0; start == 0 || start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))

		rec := BuildRecord(alloc, schema, records[start:end])
		err := w.Write(ctx, rec)
		rec.Release()
		if err != nil {
			return err
		}
	}

	return nil
}
