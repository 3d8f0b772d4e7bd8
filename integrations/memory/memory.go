// Package memory implements an in-process document store. It backs dry runs
// and tests that need a collection without a database server.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TFMV/mongoload/integrations"
	"github.com/TFMV/mongoload/pkg/core"
)

// Address is reported for every in-process store.
const Address = "memory://"

// Options configure the store.
type Options struct {
	// Latency is added to every write to imitate a network round trip.
	Latency time.Duration
}

// Option is a functional config approach
type Option func(*Options)

// WithLatency sets the simulated per-write latency.
func WithLatency(d time.Duration) Option {
	return func(o *Options) {
		o.Latency = d
	}
}

// Store holds collections keyed by namespace.
type Store struct {
	mu          sync.Mutex
	opts        Options
	collections map[string]*Collection
	closed      bool
}

var _ integrations.Database = (*Store)(nil)

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{opts: o, collections: make(map[string]*Collection)}
}

// Address returns "memory://".
func (s *Store) Address() string {
	return Address
}

// PrepareCollection creates or reuses the named collection.
func (s *Store) PrepareCollection(ctx context.Context, spec integrations.CollectionSpec) (core.Collection, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCollectionSetup, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCollectionSetup, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: store is closed", core.ErrConnection)
	}

	ns := spec.Namespace()
	coll, ok := s.collections[ns]
	switch {
	case !ok:
		coll = newCollection(s, spec)
		s.collections[ns] = coll
	case spec.Clear && (spec.Capped || coll.isCapped()):
		// Capped collections cannot be emptied in place.
		coll = newCollection(s, spec)
		s.collections[ns] = coll
	default:
		if err := coll.reuse(spec); err != nil {
			return nil, err
		}
	}

	return coll, nil
}

// Close marks the store closed. Collections handed out earlier reject writes.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Document is a stored record.
type Document struct {
	ID     string
	Fields map[string]string
}

// Collection is an ordered list of documents with a unique identifier index.
type Collection struct {
	store *Store
	spec  integrations.CollectionSpec

	mu   sync.Mutex
	docs []Document
	ids  map[string]struct{}
}

var _ core.Collection = (*Collection)(nil)

func newCollection(store *Store, spec integrations.CollectionSpec) *Collection {
	return &Collection{store: store, spec: spec, ids: make(map[string]struct{})}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spec.Name
}

func (c *Collection) isCapped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spec.Capped
}

// reuse applies spec to the existing collection. The ID mode follows the
// latest spec; capped options are fixed at creation and must match.
func (c *Collection) reuse(spec integrations.CollectionSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if spec.Capped != c.spec.Capped ||
		(spec.Capped && (spec.SizeBytes != c.spec.SizeBytes || spec.MaxDocuments != c.spec.MaxDocuments)) {
		return fmt.Errorf("%w: %s exists with different capped options", core.ErrCollectionSetup, spec.Namespace())
	}

	c.spec = spec
	if spec.Clear {
		c.docs = nil
		c.ids = make(map[string]struct{})
	}
	return nil
}

// InsertMany inserts records in order and stops at the first failure.
func (c *Collection) InsertMany(ctx context.Context, records []core.Record) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range records {
		if err := c.insert(r); err != nil {
			return i, err
		}
	}
	return len(records), nil
}

// InsertOne inserts a single record.
func (c *Collection) InsertOne(ctx context.Context, r core.Record) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insert(r)
}

// Count returns the number of stored documents.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	if c.store.isClosed() {
		return 0, fmt.Errorf("%w: store is closed", core.ErrConnection)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.docs)), nil
}

// Documents returns a copy of the stored documents in insertion order.
func (c *Collection) Documents() []Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Document(nil), c.docs...)
}

func (c *Collection) wait(ctx context.Context) error {
	if c.store.isClosed() {
		return fmt.Errorf("%w: store is closed", core.ErrConnection)
	}
	if c.store.opts.Latency <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(c.store.opts.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// insert must be called with c.mu held.
func (c *Collection) insert(r core.Record) error {
	id := uuid.NewString()
	if c.spec.IDMode == core.IDRecord {
		id = r.ID
		if _, dup := c.ids[id]; dup {
			return fmt.Errorf("%w: %s", core.ErrDuplicateID, id)
		}
	}

	c.ids[id] = struct{}{}
	c.docs = append(c.docs, Document{ID: id, Fields: r.Clone().Fields})

	if c.spec.Capped && c.spec.MaxDocuments > 0 && int64(len(c.docs)) > c.spec.MaxDocuments {
		oldest := c.docs[0]
		delete(c.ids, oldest.ID)
		c.docs = c.docs[1:]
	}
	return nil
}
