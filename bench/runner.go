// Package bench runs one load-generation benchmark from configuration to report.
package bench

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TFMV/mongoload/config"
	"github.com/TFMV/mongoload/integrations"
	"github.com/TFMV/mongoload/metrics"
	"github.com/TFMV/mongoload/pkg/core"
	"github.com/TFMV/mongoload/pkg/insert"
	"github.com/TFMV/mongoload/pkg/readers"
	"github.com/TFMV/mongoload/pkg/workload"
	"github.com/TFMV/mongoload/pkg/writers"
	"github.com/TFMV/mongoload/report"
	"github.com/TFMV/mongoload/version"
)

// closeTimeout bounds the disconnect issued after a run, which may follow an
// expired run context.
const closeTimeout = 10 * time.Second

// defaultTimeout bounds a whole run when the configuration sets no timeout.
const defaultTimeout = 10 * time.Minute

// Runner executes benchmark runs for one configuration.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger
	dial   Dialer
	stores []metrics.MetricsStore
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithDialer replaces the backend dialer.
func WithDialer(d Dialer) Option {
	return func(r *Runner) {
		r.dial = d
	}
}

// WithStores adds stores every report is saved to.
func WithStores(stores ...metrics.MetricsStore) Option {
	return func(r *Runner) {
		r.stores = append(r.stores, stores...)
	}
}

// WithClock replaces time.Now for report timestamps and unique duplicate IDs.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner constructs a Runner. A nil logger discards output.
func NewRunner(cfg *config.Config, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		logger: logger,
		dial:   DefaultDialer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the configuration the runner was built with.
func (r *Runner) Config() *config.Config {
	return r.cfg
}

// Run performs connect, collection setup, ingestion, expansion, optional dump
// and timed insertion, then saves the report. The backend is released on
// every path. A failed run returns the report with the *core.StageError.
func (r *Runner) Run(ctx context.Context) (metrics.BenchmarkReport, error) {
	rep := r.newReport()
	logger := r.logger.With(zap.String("run_id", rep.RunID))

	logger.Info("Starting benchmark",
		zap.String("backend", rep.Target.Backend),
		zap.String("uri", rep.Target.Address),
		zap.String("database", rep.Target.Database),
		zap.String("collection", rep.Target.Collection),
		zap.Int("target_count", rep.Workload.TargetCount),
		zap.String("mode", string(rep.Settings.Mode)))

	timeout := r.cfg.Insert.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runErr := r.execute(runCtx, logger, &rep)

	rep.EndTime = r.now()
	rep.Duration = rep.EndTime.Sub(rep.StartTime)
	if runErr != nil {
		stage, _ := core.StageOf(runErr)
		rep.Status = metrics.Failed
		rep.FailedStage = stage
		rep.Error = runErr.Error()
		logger.Error("Benchmark failed", zap.String("stage", string(stage)), zap.Error(runErr))
	} else {
		rep.Status = metrics.Succeeded
		logger.Info("Benchmark complete",
			zap.Int("inserted", rep.Insert.Inserted),
			zap.Int64("elapsed", rep.Insert.ElapsedNanos),
			zap.Float64("records_per_second", rep.Insert.RecordsPerSecond))
	}

	if err := r.persist(ctx, rep); err != nil {
		logger.Error("Failed to save report", zap.Error(err))
		if runErr == nil {
			return rep, err
		}
	}

	return rep, runErr
}

func (r *Runner) newReport() metrics.BenchmarkReport {
	cfg := r.cfg
	return metrics.BenchmarkReport{
		RunID:     newRunID(),
		Version:   version.GetVersion(),
		StartTime: r.now(),
		Target: metrics.TargetMetadata{
			Backend:     cfg.Backend,
			Address:     address(cfg),
			Database:    cfg.Mongo.Database,
			Collection:  cfg.Mongo.Collection,
			Capped:      cfg.Collection.Capped,
			SizeBytes:   cfg.Collection.SizeBytes,
			AutoIndexID: cfg.Collection.AutoIndexID,
			IDMode:      cfg.Collection.IDMode,
		},
		Workload: metrics.WorkloadMetadata{
			SamplePath:  cfg.Workload.SamplePath,
			Reader:      cfg.Workload.Reader,
			RowPolicy:   cfg.Workload.RowPolicy,
			TargetCount: cfg.Workload.TargetCount,
			Seed:        cfg.Workload.Seed,
			UniqueIDs:   cfg.Workload.UniqueIDs,
		},
		Settings: metrics.InsertSettings{
			Mode:        cfg.Insert.Mode,
			BatchSize:   cfg.Insert.BatchSize,
			Concurrency: cfg.Insert.Concurrency,
			Delay:       cfg.Insert.Delay,
		},
	}
}

// newRunID returns a time-ordered identifier so history keys sort by run.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (r *Runner) execute(ctx context.Context, logger *zap.Logger, rep *metrics.BenchmarkReport) error {
	cfg := r.cfg

	db, err := r.dial(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect", zap.String("uri", rep.Target.Address), zap.Error(err))
		return core.NewStageError(core.StageConnect, core.ErrConnection, err, "address", rep.Target.Address)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			logger.Warn("Failed to close connection", zap.Error(err))
		}
	}()
	rep.Target.Address = db.Address()

	spec := integrations.CollectionSpec{
		Database:     cfg.Mongo.Database,
		Name:         cfg.Mongo.Collection,
		AutoIndexID:  cfg.Collection.AutoIndexID,
		Capped:       cfg.Collection.Capped,
		SizeBytes:    cfg.Collection.SizeBytes,
		MaxDocuments: cfg.Collection.MaxDocs,
		Clear:        cfg.Collection.Clear,
		IDMode:       cfg.Collection.IDMode,
	}
	coll, err := db.PrepareCollection(ctx, spec)
	if err != nil {
		return core.NewStageError(core.StageCollection, core.ErrCollectionSetup, err, "namespace", spec.Namespace())
	}

	sample, err := r.ingest(ctx)
	if err != nil {
		return core.NewStageError(core.StageIngest, core.ErrFileRead, err, "path", cfg.Workload.SamplePath)
	}
	rep.Workload.Fields = sample.Header
	rep.Workload.SampleRecords = sample.Len()
	logger.Info("Sample loaded",
		zap.String("path", cfg.Workload.SamplePath),
		zap.Int("records", sample.Len()),
		zap.Strings("fields", sample.Header))

	var opts []workload.Option
	if cfg.Workload.Seed != 0 {
		opts = append(opts, workload.WithSeed(cfg.Workload.Seed))
	}
	if cfg.Workload.UniqueIDs {
		opts = append(opts, workload.WithUniqueIDs(r.now))
	}
	working, err := workload.Expand(sample.Records, cfg.Workload.TargetCount, opts...)
	if err != nil {
		return core.NewStageError(core.StageExpand, core.ErrWorkload, err,
			"target", strconv.Itoa(cfg.Workload.TargetCount))
	}
	rep.Workload.WorkingSetSize = len(working)

	if cfg.Output.DumpPath != "" {
		if err := r.dump(ctx, sample.Header, working); err != nil {
			return core.NewStageError(core.StageDump, core.ErrOutput, err, "path", cfg.Output.DumpPath)
		}
		logger.Info("Working set dumped", zap.String("path", cfg.Output.DumpPath), zap.String("format", cfg.Output.DumpFormat))
	}

	result, err := insert.Run(ctx, coll, working, insert.Options{
		Mode:        cfg.Insert.Mode,
		BatchSize:   cfg.Insert.BatchSize,
		Concurrency: cfg.Insert.Concurrency,
		Delay:       cfg.Insert.Delay,
		Logger:      logger,
	})
	rep.Insert = metrics.NewInsertMetrics(result)
	if err != nil {
		if _, ok := core.StageOf(err); !ok {
			err = core.NewStageError(core.StageInsert, core.ErrInsert, err, "collection", coll.Name())
		}
		return err
	}

	logger.Info("Insertion complete",
		zap.String("collection", coll.Name()),
		zap.Int("inserted", result.Inserted),
		zap.Int("failed", result.Failed),
		zap.Int64("elapsed", result.ElapsedNanos()))

	if count, err := coll.Count(ctx); err != nil {
		logger.Warn("Failed to count documents", zap.Error(err))
	} else {
		logger.Debug("Collection size after run", zap.Int64("documents", count))
	}

	return nil
}

func (r *Runner) ingest(ctx context.Context) (*core.SampleSet, error) {
	reader, err := readers.DefaultFactory.Create(core.ReaderConfig{
		Type:   r.cfg.Workload.Reader,
		Path:   r.cfg.Workload.SamplePath,
		Policy: r.cfg.Workload.RowPolicy,
	})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return reader.Read(ctx)
}

func (r *Runner) dump(ctx context.Context, header []string, records []core.Record) error {
	w, err := writers.DefaultFactory.Create(core.WriterConfig{
		Type: r.cfg.Output.DumpFormat,
		Path: r.cfg.Output.DumpPath,
	})
	if err != nil {
		return err
	}
	return writers.Dump(ctx, w, header, records, 0)
}

func (r *Runner) persist(ctx context.Context, rep metrics.BenchmarkReport) error {
	var errs []error
	for _, store := range r.stores {
		if err := store.SaveWithContext(ctx, rep); err != nil {
			errs = append(errs, err)
		}
	}
	if err := report.SaveReports(rep, r.cfg.Output.ReportJSON, r.cfg.Output.ReportHTML); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return core.NewStageError(core.StageReport, core.ErrOutput, errors.Join(errs...))
	}
	return nil
}
