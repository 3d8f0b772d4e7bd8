// Package insert submits a working set to a collection and times the pass.
package insert

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/TFMV/mongoload/pkg/core"
)

// Options configure an insertion pass.
type Options struct {
	// Mode selects batch or sequential insertion.
	Mode core.InsertMode

	// BatchSize splits batch mode into bulk writes of this many records.
	// Zero submits the whole working set as one bulk write.
	BatchSize int

	// Concurrency bounds in-flight inserts in sequential mode. Values below 1 mean 1.
	Concurrency int

	// Delay is the minimum spacing between submissions in sequential mode.
	Delay time.Duration

	// Logger receives per-record faults. Nil discards them.
	Logger *zap.Logger
}

// Run inserts records into coll and reports elapsed time with the inserted count.
func Run(ctx context.Context, coll core.Collection, records []core.Record, opts Options) (core.InsertResult, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	switch opts.Mode {
	case core.Batch, "":
		return runBatch(ctx, coll, records, opts)
	case core.Sequential:
		return runSequential(ctx, coll, records, opts)
	default:
		return core.InsertResult{}, fmt.Errorf("unsupported insert mode: %s", opts.Mode)
	}
}

// chunk splits records into consecutive slices of at most size records.
func chunk(records []core.Record, size int) [][]core.Record {
	if size <= 0 || size >= len(records) {
		return [][]core.Record{records}
	}
	chunks := make([][]core.Record, 0, (len(records)+size-1)/size)
	for size < len(records) {
		records, chunks = records[size:], append(chunks, records[0:size:size])
	}
	return append(chunks, records)
}

// runBatch submits bulk writes in order. The first fault aborts the pass.
func runBatch(ctx context.Context, coll core.Collection, records []core.Record, opts Options) (core.InsertResult, error) {
	result := core.InsertResult{Mode: core.Batch}
	if len(records) == 0 {
		return result, nil
	}

	chunks := chunk(records, opts.BatchSize)

	timer := StartTimer()
	for i, c := range chunks {
		result.Attempted += len(c)
		n, err := coll.InsertMany(ctx, c)
		result.Inserted += n
		if err != nil {
			result.Elapsed = timer.Elapsed()
			result.Failed = result.Attempted - result.Inserted
			return result, core.NewStageError(core.StageInsert, core.ErrInsert, err,
				"collection", coll.Name(),
				"chunk", strconv.Itoa(i+1)+"/"+strconv.Itoa(len(chunks)))
		}
	}
	result.Elapsed = timer.Elapsed()

	return result, nil
}

// runSequential submits records one by one with bounded concurrency.
// Faults on individual records are logged and counted; the pass continues.
func runSequential(ctx context.Context, coll core.Collection, records []core.Record, opts Options) (core.InsertResult, error) {
	result := core.InsertResult{Mode: core.Sequential}
	if len(records) == 0 {
		return result, nil
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}

	var (
		g        errgroup.Group
		mu       sync.Mutex
		inserted int
		failures []core.InsertFailure
	)
	g.SetLimit(concurrency)

	var stopErr error
	timer := StartTimer()
	for _, rec := range records {
		if err := limiter.Wait(ctx); err != nil {
			stopErr = err
			break
		}
		result.Attempted++

		g.Go(func() error {
			err := coll.InsertOne(ctx, rec)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, core.InsertFailure{RecordID: rec.ID, Error: err.Error()})
				opts.Logger.Warn("Insert failed, continuing",
					zap.String("collection", coll.Name()),
					zap.String("record_id", rec.ID),
					zap.Error(err))
				return nil
			}
			inserted++
			return nil
		})
	}
	_ = g.Wait()
	result.Elapsed = timer.Elapsed()

	result.Inserted = inserted
	result.Failures = failures
	result.Failed = len(failures)

	if stopErr != nil {
		return result, core.NewStageError(core.StageInsert, core.ErrInsert, stopErr,
			"collection", coll.Name(),
			"submitted", strconv.Itoa(result.Attempted))
	}

	return result, nil
}
