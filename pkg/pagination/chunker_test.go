package pagination

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/go621/pkg/apierror"
)

// fakeBatches serves the ids in known, shuffling each response.
type fakeBatches struct {
	known   map[uint64]bool
	failOn  int
	err     error
	batches [][]uint64
}

func newFakeBatches(ids ...uint64) *fakeBatches {
	known := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return &fakeBatches{known: known}
}

func (f *fakeBatches) FetchBatch(ctx context.Context, ids []uint64) ([]item, error) {
	f.batches = append(f.batches, ids)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failOn == len(f.batches) {
		return nil, f.err
	}

	var out []item
	for _, id := range ids {
		if f.known[id] {
			out = append(out, item{id: id})
		}
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

func TestChunker_PreservesInputOrder(t *testing.T) {
	fetcher := newFakeBatches(3, 5, 9)
	chunker := NewChunker[item](fetcher, 0)

	var ids []uint64
	for rec, err := range chunker.All(context.Background(), []uint64{5, 3, 3, 9}) {
		require.NoError(t, err)
		ids = append(ids, rec.id)
	}

	assert.Equal(t, []uint64{5, 3, 3, 9}, ids)
	require.Len(t, fetcher.batches, 1)
	assert.Equal(t, []uint64{5, 3, 9}, fetcher.batches[0], "repeated ids are requested once")
}

func TestChunker_MissingID(t *testing.T) {
	fetcher := newFakeBatches(1, 2)
	chunker := NewChunker[item](fetcher, 0)

	type slot struct {
		id  uint64
		err error
	}
	var slots []slot
	for rec, err := range chunker.All(context.Background(), []uint64{1, 7, 2}) {
		slots = append(slots, slot{id: rec.id, err: err})
	}

	require.Len(t, slots, 3)
	assert.Equal(t, uint64(1), slots[0].id)
	assert.Equal(t, uint64(2), slots[2].id)

	var notFound *apierror.NotFoundError
	require.ErrorAs(t, slots[1].err, &notFound)
	assert.Equal(t, uint64(7), notFound.ID)
	assert.ErrorIs(t, slots[1].err, apierror.ErrNotFound)
}

func TestChunker_RequestCount(t *testing.T) {
	ids := make([]uint64, 700)
	for i := range ids {
		ids[i] = uint64(i + 1)
	}
	fetcher := newFakeBatches(ids...)
	chunker := NewChunker[item](fetcher, 320)

	count := 0
	for _, err := range chunker.All(context.Background(), ids) {
		require.NoError(t, err)
		count++
	}

	assert.Equal(t, 700, count)
	require.Len(t, fetcher.batches, 3)
	assert.Len(t, fetcher.batches[0], 320)
	assert.Len(t, fetcher.batches[1], 320)
	assert.Len(t, fetcher.batches[2], 60)
}

func TestChunker_BatchFailureFillsSlots(t *testing.T) {
	boom := errors.New("boom")
	fetcher := newFakeBatches(1, 2, 3, 4, 5)
	fetcher.failOn = 2
	fetcher.err = boom
	chunker := NewChunker[item](fetcher, 2)

	var results []error
	var found []uint64
	for rec, err := range chunker.All(context.Background(), []uint64{1, 2, 3, 4, 5}) {
		results = append(results, err)
		if err == nil {
			found = append(found, rec.id)
		}
	}

	require.Len(t, results, 5)
	assert.NoError(t, results[0])
	assert.NoError(t, results[1])
	assert.ErrorIs(t, results[2], boom)
	assert.ErrorIs(t, results[3], boom)
	assert.NoError(t, results[4])
	assert.Equal(t, []uint64{1, 2, 5}, found)
	assert.Len(t, fetcher.batches, 3)
}

func TestChunker_AbandonStopsRequests(t *testing.T) {
	fetcher := newFakeBatches(1, 2, 3, 4, 5, 6)
	chunker := NewChunker[item](fetcher, 2)

	for range chunker.All(context.Background(), []uint64{1, 2, 3, 4, 5, 6}) {
		break
	}

	assert.Len(t, fetcher.batches, 1)
}

func TestChunker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := newFakeBatches(1, 2, 3)
	chunker := NewChunker[item](fetcher, 2)

	errs := 0
	for _, err := range chunker.All(ctx, []uint64{1, 2, 3}) {
		assert.ErrorIs(t, err, context.Canceled)
		errs++
	}
	assert.Equal(t, 3, errs, "every slot reports the cancellation")
	assert.Empty(t, fetcher.batches, "no batch is fetched after cancellation")
}

func TestChunker_CancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := newFakeBatches(1, 2, 3, 4, 5)
	chunker := NewChunker[item](fetcher, 2)

	var got []uint64
	var errs []error
	for rec, err := range chunker.All(ctx, []uint64{1, 2, 3, 4, 5}) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, rec.id)
		if len(got) == 2 {
			cancel()
		}
	}

	assert.Equal(t, []uint64{1, 2}, got)
	require.Len(t, errs, 3)
	for _, err := range errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Len(t, fetcher.batches, 1, "only the first batch is fetched")
}

func TestChunker_EmptyInput(t *testing.T) {
	fetcher := newFakeBatches()
	chunker := NewChunker[item](fetcher, 0)

	for range chunker.All(context.Background(), nil) {
		t.Fatal("expected no elements")
	}
	assert.Empty(t, fetcher.batches)
}

func TestBatches(t *testing.T) {
	tests := []struct {
		name     string
		ids      []uint64
		size     int
		expected [][]uint64
	}{
		{name: "empty", ids: nil, size: 2, expected: [][]uint64{}},
		{name: "exact", ids: []uint64{1, 2, 3, 4}, size: 2, expected: [][]uint64{{1, 2}, {3, 4}}},
		{name: "remainder", ids: []uint64{1, 2, 3}, size: 2, expected: [][]uint64{{1, 2}, {3}}},
		{name: "single", ids: []uint64{1, 2, 3}, size: 10, expected: [][]uint64{{1, 2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Batches(tt.ids, tt.size))
		})
	}
}

func TestNewChunker_BatchSize(t *testing.T) {
	tests := []struct {
		size     int
		expected int
	}{
		{0, MaxBatchSize},
		{-1, MaxBatchSize},
		{MaxBatchSize + 1, MaxBatchSize},
		{100, 100},
	}

	for _, tt := range tests {
		if got := NewChunker[item](newFakeBatches(), tt.size).BatchSize(); got != tt.expected {
			t.Errorf("NewChunker(%d).BatchSize() = %d, want %d", tt.size, got, tt.expected)
		}
	}
}
