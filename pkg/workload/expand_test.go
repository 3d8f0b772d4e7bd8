package workload

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/mongoload/pkg/core"
)

func zipSample() []core.Record {
	return []core.Record{
		{ID: "10001", Fields: map[string]string{"zip": "10001", "county": "New York", "population": "21102"}},
		{ID: "11201", Fields: map[string]string{"zip": "11201", "county": "Kings", "population": "53041"}},
	}
}

func TestExpand_Example(t *testing.T) {
	sample := zipSample()
	original := []core.Record{sample[0].Clone(), sample[1].Clone()}

	working, err := Expand(sample, 5, WithSeed(42))
	require.NoError(t, err)
	require.Len(t, working, 5)

	assert.Equal(t, original[0], working[0])
	assert.Equal(t, original[1], working[1])
	for _, dup := range working[2:] {
		assert.True(t, dup.ID == "10001" || dup.ID == "11201", "unexpected duplicate %q", dup.ID)
		assert.Contains(t, original, dup)
	}
}

func TestExpand_DuplicatesAreDeepCopies(t *testing.T) {
	sample := zipSample()
	working, err := Expand(sample, 50, WithSeed(7))
	require.NoError(t, err)

	for i := len(sample); i < len(working); i++ {
		working[i].Fields["county"] = fmt.Sprintf("mutated-%d", i)
	}

	assert.Equal(t, "New York", sample[0].Fields["county"])
	assert.Equal(t, "Kings", sample[1].Fields["county"])
	assert.Equal(t, "New York", working[0].Fields["county"])
	assert.Equal(t, "Kings", working[1].Fields["county"])
}

func TestExpand_SampleRecordsAreCopied(t *testing.T) {
	sample := zipSample()
	working, err := Expand(sample, 5, WithSeed(3))
	require.NoError(t, err)

	assert.Equal(t, sample[0], working[0])
	working[0].Fields["county"] = "mutated"
	assert.Equal(t, "New York", sample[0].Fields["county"])
}

func TestExpand_TargetNotAboveSample(t *testing.T) {
	sample := zipSample()

	for _, target := range []int{0, 1, 2} {
		working, err := Expand(sample, target)
		require.NoError(t, err)
		assert.Equal(t, sample, working, "target %d", target)
	}
}

func TestExpand_EmptySample(t *testing.T) {
	working, err := Expand(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, working)

	_, err = Expand(nil, 3)
	assert.ErrorIs(t, err, ErrEmptySample)
}

func TestExpand_SingleRecord(t *testing.T) {
	sample := []core.Record{{ID: "a", Fields: map[string]string{"k": "v"}}}
	working, err := Expand(sample, 4)
	require.NoError(t, err)
	require.Len(t, working, 4)
	for _, r := range working {
		assert.Equal(t, sample[0], r)
	}
}

func TestExpand_SeedIsReproducible(t *testing.T) {
	sample := []core.Record{
		{ID: "a", Fields: map[string]string{"k": "a"}},
		{ID: "b", Fields: map[string]string{"k": "b"}},
		{ID: "c", Fields: map[string]string{"k": "c"}},
	}

	first, err := Expand(sample, 200, WithSeed(99))
	require.NoError(t, err)
	second, err := Expand(sample, 200, WithSeed(99))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExpand_UniqueIDs(t *testing.T) {
	fixed := time.Unix(0, 1700000000000000000)
	clock := func() time.Time { return fixed }

	working, err := Expand(zipSample(), 20, WithSeed(1), WithUniqueIDs(clock))
	require.NoError(t, err)
	require.Len(t, working, 20)

	seen := make(map[string]bool, len(working))
	for _, r := range working {
		assert.False(t, seen[r.ID], "duplicate id %q", r.ID)
		seen[r.ID] = true
	}
	assert.Equal(t, "10001", working[0].ID)
	assert.Equal(t, "11201", working[1].ID)
	assert.Contains(t, working[2].ID, "-1700000000000000000")
}

func TestIDSetClaim(t *testing.T) {
	s := newIDSet([]core.Record{{ID: "x"}, {ID: "x-1"}})
	assert.Equal(t, "x-2", s.claim("x"))
	assert.Equal(t, "y", s.claim("y"))
	assert.Equal(t, "y-1", s.claim("y"))
}
