package pagination

import (
	"context"
	"iter"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/go621/pkg/apierror"
)

// BatchFetcher is the request issuer a Chunker pulls batches from.
type BatchFetcher[T Record] interface {
	// FetchBatch fetches the records for ids in one request. Records may come
	// back in any order; missing ids are simply absent.
	FetchBatch(ctx context.Context, ids []uint64) ([]T, error)
}

// BatchFetcherFunc adapts a function to BatchFetcher.
type BatchFetcherFunc[T Record] func(ctx context.Context, ids []uint64) ([]T, error)

// FetchBatch implements BatchFetcher.
func (f BatchFetcherFunc[T]) FetchBatch(ctx context.Context, ids []uint64) ([]T, error) {
	return f(ctx, ids)
}

// Chunker resolves id lists in fixed-size batches.
type Chunker[T Record] struct {
	fetcher   BatchFetcher[T]
	batchSize int
}

// NewChunker creates a chunker. A batch size outside (0, MaxBatchSize] falls
// back to MaxBatchSize.
func NewChunker[T Record](fetcher BatchFetcher[T], batchSize int) *Chunker[T] {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Chunker[T]{fetcher: fetcher, batchSize: batchSize}
}

// BatchSize returns the configured batch size.
func (c *Chunker[T]) BatchSize() int {
	return c.batchSize
}

// All yields exactly one element per input id, in input order. A missing id
// yields an *apierror.NotFoundError in its slot; a failed batch yields the
// batch error in every slot of that batch and processing moves on to the
// next batch. Once ctx is done, the remaining slots get ctx.Err() and no
// further batches are fetched. Batches are requested lazily, one at a time.
func (c *Chunker[T]) All(ctx context.Context, ids []uint64) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		failed := 0

		for i, batch := range Batches(ids, c.batchSize) {
			var records []T
			err := ctx.Err()
			if err == nil {
				requestsIssuedTotal.WithLabelValues("chunker").Inc()
				records, err = c.fetcher.FetchBatch(ctx, unique(batch))
			}
			if err != nil {
				failed++
				log.Debug().
					Err(err).
					Int("batch", i).
					Int("size", len(batch)).
					Msg("Batch failed")

				for range batch {
					if !yield(zero, err) {
						return
					}
				}
				continue
			}

			byID := make(map[uint64]T, len(records))
			for _, rec := range records {
				byID[rec.RecordID()] = rec
			}

			for _, id := range batch {
				rec, ok := byID[id]
				if !ok {
					notFoundTotal.Inc()
					if !yield(zero, &apierror.NotFoundError{ID: id}) {
						return
					}
					continue
				}

				recordsYieldedTotal.WithLabelValues("chunker").Inc()
				if !yield(rec, nil) {
					return
				}
			}
		}

		log.Debug().
			Int("ids", len(ids)).
			Int("failed_batches", failed).
			Msg("Batch lookup complete")
	}
}

// Batches splits ids into consecutive chunks of at most size ids. The chunks
// share the backing array of ids.
func Batches(ids []uint64, size int) [][]uint64 {
	if size <= 0 {
		size = MaxBatchSize
	}

	batches := make([][]uint64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end:end])
	}
	return batches
}

// unique drops repeated ids, keeping first occurrence order.
func unique(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
