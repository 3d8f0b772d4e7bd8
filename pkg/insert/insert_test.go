package insert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/TFMV/mongoload/pkg/core"
)

// fakeCollection enforces unique record IDs and records call statistics.
type fakeCollection struct {
	mu        sync.Mutex
	ids       map[string]struct{}
	manyCalls int
	failMany  int // InsertMany call number (1-based) that fails; 0 never

	latency     time.Duration
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{ids: make(map[string]struct{})}
}

func (c *fakeCollection) Name() string { return "fake" }

func (c *fakeCollection) insert(r core.Record) error {
	if _, dup := c.ids[r.ID]; dup {
		return fmt.Errorf("%w: %s", core.ErrDuplicateID, r.ID)
	}
	c.ids[r.ID] = struct{}{}
	return nil
}

func (c *fakeCollection) InsertMany(ctx context.Context, records []core.Record) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manyCalls++
	if c.failMany == c.manyCalls {
		return 0, errors.New("bulk write exception")
	}
	for i, r := range records {
		if err := c.insert(r); err != nil {
			return i, err
		}
	}
	return len(records), nil
}

func (c *fakeCollection) InsertOne(ctx context.Context, r core.Record) error {
	n := c.inflight.Add(1)
	defer c.inflight.Add(-1)
	for {
		cur := c.maxInflight.Load()
		if n <= cur || c.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}
	if c.latency > 0 {
		time.Sleep(c.latency)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insert(r)
}

func (c *fakeCollection) Count(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.ids)), nil
}

func makeRecords(n int) []core.Record {
	records := make([]core.Record, n)
	for i := range records {
		id := fmt.Sprintf("%05d", i)
		records[i] = core.Record{ID: id, Fields: map[string]string{"zip": id}}
	}
	return records
}

func TestBatchInsertAll(t *testing.T) {
	coll := newFakeCollection()
	records := makeRecords(100)

	res, err := Run(context.Background(), coll, records, Options{Mode: core.Batch})
	require.NoError(t, err)

	count, err := coll.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), count)
	assert.Equal(t, 100, res.Inserted)
	assert.Equal(t, 100, res.Attempted)
	assert.Equal(t, core.Batch, res.Mode)
	assert.Equal(t, 1, coll.manyCalls)
	assert.Greater(t, res.ElapsedNanos(), int64(0))
}

func TestBatchInsertChunked(t *testing.T) {
	coll := newFakeCollection()

	res, err := Run(context.Background(), coll, makeRecords(25), Options{Mode: core.Batch, BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Inserted)
	assert.Equal(t, 3, coll.manyCalls)
}

func TestBatchFaultAborts(t *testing.T) {
	coll := newFakeCollection()
	coll.failMany = 2

	res, err := Run(context.Background(), coll, makeRecords(30), Options{Mode: core.Batch, BatchSize: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInsert))
	assert.Contains(t, err.Error(), "chunk=2/3")
	assert.Equal(t, 10, res.Inserted)
	assert.Equal(t, 20, res.Attempted)
	assert.Equal(t, 10, res.Failed)
	assert.Equal(t, 2, coll.manyCalls)
}

func TestBatchDuplicateAborts(t *testing.T) {
	coll := newFakeCollection()
	records := makeRecords(5)
	records[3].ID = records[1].ID

	res, err := Run(context.Background(), coll, records, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDuplicateID))
	assert.Equal(t, 3, res.Inserted)
}

func TestSequentialSkipsFaultyRecord(t *testing.T) {
	obsCore, logs := observer.New(zap.WarnLevel)
	coll := newFakeCollection()
	records := makeRecords(10)
	records[6].ID = records[2].ID

	res, err := Run(context.Background(), coll, records, Options{Mode: "sequential", Logger: zap.New(obsCore)})
	require.NoError(t, err)

	assert.Equal(t, 9, res.Inserted)
	assert.Equal(t, 10, res.Attempted)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, records[2].ID, res.Failures[0].RecordID)

	entries := logs.FilterField(zap.String("record_id", records[2].ID)).All()
	assert.Len(t, entries, 1)
}

func TestSequentialBoundedConcurrency(t *testing.T) {
	coll := newFakeCollection()
	coll.latency = 5 * time.Millisecond

	res, err := Run(context.Background(), coll, makeRecords(40), Options{Mode: "sequential", Concurrency: 4})
	require.NoError(t, err)
	assert.Equal(t, 40, res.Inserted)
	assert.LessOrEqual(t, coll.maxInflight.Load(), int32(4))
	assert.Greater(t, coll.maxInflight.Load(), int32(1))
}

func TestSequentialDelayThrottles(t *testing.T) {
	coll := newFakeCollection()

	res, err := Run(context.Background(), coll, makeRecords(5), Options{Mode: "sequential", Delay: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Inserted)
	// The first token is immediate; the remaining four wait one delay each.
	assert.GreaterOrEqual(t, res.Elapsed, 70*time.Millisecond)
}

func TestSequentialCanceledContext(t *testing.T) {
	coll := newFakeCollection()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, coll, makeRecords(5), Options{Mode: "sequential"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInsert))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, res.Attempted)
	assert.Zero(t, res.Inserted)
}

func TestEmptyWorkingSet(t *testing.T) {
	for _, mode := range []core.InsertMode{core.Batch, core.Sequential} {
		res, err := Run(context.Background(), newFakeCollection(), nil, Options{Mode: mode})
		require.NoError(t, err)
		assert.Zero(t, res.Inserted)
		assert.Equal(t, mode, res.Mode)
	}
}

func TestUnsupportedMode(t *testing.T) {
	_, err := Run(context.Background(), newFakeCollection(), makeRecords(1), Options{Mode: "parallel"})
	assert.EqualError(t, err, "unsupported insert mode: parallel")
}

func TestChunk(t *testing.T) {
	records := makeRecords(7)

	assert.Len(t, chunk(records, 0), 1)
	assert.Len(t, chunk(records, 7), 1)
	chunks := chunk(records, 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[2], 1)
	assert.Equal(t, 3, cap(chunks[0]))
}

func TestTimerElapsed(t *testing.T) {
	timer := StartTimer()
	time.Sleep(2 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Elapsed(), 2*time.Millisecond)
}
