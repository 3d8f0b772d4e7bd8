package core

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCloneIsDeep(t *testing.T) {
	src := Record{ID: "10001", Fields: map[string]string{"zip": "10001", "county": "New York"}}
	dup := src.Clone()

	dup.Fields["county"] = "Kings"
	dup.ID = "changed"

	assert.Equal(t, "New York", src.Fields["county"])
	assert.Equal(t, "10001", src.ID)
}

func TestRecordCloneNilFields(t *testing.T) {
	dup := Record{ID: "x"}.Clone()
	assert.Nil(t, dup.Fields)
	assert.Equal(t, "x", dup.ID)
}

func TestInsertResultRates(t *testing.T) {
	r := InsertResult{Inserted: 500, Elapsed: 2 * time.Second}
	assert.Equal(t, int64(2_000_000_000), r.ElapsedNanos())
	assert.InDelta(t, 250.0, r.RecordsPerSecond(), 0.001)

	assert.Zero(t, InsertResult{Inserted: 10}.RecordsPerSecond())
}

func TestSampleSetLen(t *testing.T) {
	var s *SampleSet
	assert.Equal(t, 0, s.Len())
	s = &SampleSet{Records: make([]Record, 3)}
	assert.Equal(t, 3, s.Len())
}

func TestStageErrorUnwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := NewStageError(StageConnect, ErrConnection, cause, "uri", "mongodb://localhost:27017")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnection))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, ErrInsert))
	assert.Equal(t, "connect: connection error (uri=mongodb://localhost:27017): context deadline exceeded", err.Error())

	stage, ok := StageOf(err)
	assert.True(t, ok)
	assert.Equal(t, StageConnect, stage)
}

func TestStageOfWrapped(t *testing.T) {
	inner := NewStageError(StageIngest, ErrFileRead, io.ErrUnexpectedEOF)
	wrapped := errors.Join(errors.New("run failed"), inner)

	stage, ok := StageOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, StageIngest, stage)

	_, ok = StageOf(io.EOF)
	assert.False(t, ok)
}
