package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

// ErrRunNotFound is returned when a run ID has no stored report.
var ErrRunNotFound = errors.New("run not found")

// HistoryStore keeps past reports for later listing.
type HistoryStore interface {
	MetricsStore
	Get(runID string) (BenchmarkReport, error)
	List(limit int) ([]BenchmarkReport, error)
	Close() error
}

// BoltHistoryStore persists reports in a bbolt file keyed by run ID.
// Run IDs are time-ordered, so key order is run order.
type BoltHistoryStore struct {
	db *bolt.DB
}

var _ HistoryStore = (*BoltHistoryStore)(nil)

// OpenBoltHistoryStore opens or creates the history file at path.
func OpenBoltHistoryStore(path string) (*BoltHistoryStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create runs bucket: %w", err)
	}

	return &BoltHistoryStore{db: db}, nil
}

func (b *BoltHistoryStore) Save(run BenchmarkReport) error {
	if run.RunID == "" {
		return errors.New("run ID is required")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put([]byte(run.RunID), data)
	})
}

func (b *BoltHistoryStore) SaveWithContext(ctx context.Context, run BenchmarkReport) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return b.Save(run)
	}
}

// Get returns the report stored under runID.
func (b *BoltHistoryStore) Get(runID string) (BenchmarkReport, error) {
	var run BenchmarkReport
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(runsBucket).Get([]byte(runID))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		// v is only valid during the transaction; Unmarshal copies what it keeps
		return json.Unmarshal(v, &run)
	})
	return run, err
}

// List returns up to limit reports, newest first. A limit below 1 returns all.
func (b *BoltHistoryStore) List(limit int) ([]BenchmarkReport, error) {
	var runs []BenchmarkReport
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(runsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run BenchmarkReport
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("failed to decode run %s: %w", k, err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	return runs, err
}

// Close closes the database
func (b *BoltHistoryStore) Close() error {
	return b.db.Close()
}
