// Package workload grows a sample set into the working set inserted by a benchmark run.
package workload

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/TFMV/mongoload/pkg/core"
)

// ErrEmptySample is returned when records must be duplicated from an empty sample.
var ErrEmptySample = errors.New("cannot expand an empty sample")

// Options configure Expand.
type Options struct {
	// Seed makes the duplicate choice reproducible. Zero seeds from the clock.
	Seed int64

	// UniqueIDs rewrites duplicate IDs so no two records share one.
	UniqueIDs bool

	// Clock supplies the timestamp mixed into unique duplicate IDs.
	Clock func() time.Time
}

// Option is a functional config approach.
type Option func(*Options)

// WithSeed fixes the random source.
func WithSeed(seed int64) Option {
	return func(o *Options) {
		o.Seed = seed
	}
}

// WithUniqueIDs gives each duplicate an ID of the form <sourceID>-<unixnano>.
// A nil clock uses time.Now.
func WithUniqueIDs(clock func() time.Time) Option {
	return func(o *Options) {
		o.UniqueIDs = true
		o.Clock = clock
	}
}

// Expand returns a working set of exactly target records. The first len(sample)
// records equal the sample; the rest are copies of records picked uniformly
// from [0, n-1) where n is the current working-set length. Every record of a
// grown working set is a deep copy, so mutating it never reaches the sample.
// If target <= len(sample) the sample slice itself is returned.
func Expand(sample []core.Record, target int, opts ...Option) ([]core.Record, error) {
	if target <= len(sample) {
		return sample, nil
	}
	if len(sample) == 0 {
		return nil, ErrEmptySample
	}

	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}

	seed := uint64(o.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	working := make([]core.Record, 0, target)
	for _, r := range sample {
		working = append(working, r.Clone())
	}

	var ids *idSet
	if o.UniqueIDs {
		ids = newIDSet(working)
	}

	for len(working) < target {
		idx := 0
		if n := len(working); n > 1 {
			idx = rng.IntN(n - 1)
		}
		dup := working[idx].Clone()
		if ids != nil {
			dup.ID = ids.claim(dup.ID + "-" + strconv.FormatInt(o.Clock().UnixNano(), 10))
		}
		working = append(working, dup)
	}

	return working, nil
}

// idSet tracks IDs already present in the working set.
type idSet struct {
	seen map[string]struct{}
}

func newIDSet(records []core.Record) *idSet {
	s := &idSet{seen: make(map[string]struct{}, cap(records))}
	for _, r := range records {
		s.seen[r.ID] = struct{}{}
	}
	return s
}

// claim returns id, or id with a numeric suffix if id is taken, and marks it used.
func (s *idSet) claim(id string) string {
	candidate := id
	for n := 1; ; n++ {
		if _, taken := s.seen[candidate]; !taken {
			break
		}
		candidate = id + "-" + strconv.Itoa(n)
	}
	s.seen[candidate] = struct{}{}
	return candidate
}
