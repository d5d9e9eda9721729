package client

import (
	"context"
	"fmt"
	"iter"
	"strconv"

	"github.com/Sternrassler/go621/pkg/apierror"
	"github.com/Sternrassler/go621/pkg/pagination"
	"github.com/Sternrassler/go621/pkg/query"
)

// pageFunc fetches and decodes a single listing page.
type pageFunc[T pagination.Record] func(ctx context.Context, req query.Request) ([]T, error)

// search drives a paginated listing. Each range over the returned sequence
// starts a fresh cursor; an invalid listing yields its validation error as
// the only element.
func search[T pagination.Record](ctx context.Context, listing query.Listing, fetch pageFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if err := listing.Validate(); err != nil {
			var zero T
			yield(zero, err)
			return
		}

		base := listing.Request()
		fetcher := pagination.PageFetcherFunc[T](func(ctx context.Context, marker pagination.Marker, limit int) ([]T, error) {
			req := base.With("limit", strconv.Itoa(limit))
			if !marker.IsZero() {
				req = req.With("page", marker.String())
			}
			return fetch(ctx, req)
		})

		pageSize, maxItems := listing.Limits()
		cursor := pagination.NewCursor[T](fetcher, pagination.CursorConfig{
			PageSize: pageSize,
			Max:      maxItems,
			Order:    orderOf(listing.Sort()),
		})

		for rec, err := range cursor.All(ctx) {
			if !yield(rec, err) {
				return
			}
		}
	}
}

// lookup resolves ids in batches, one result per id in input order.
func lookup[T pagination.Record](ctx context.Context, c *Client, ids []uint64, build func([]uint64) query.Request, fetch pageFunc[T]) iter.Seq2[T, error] {
	chunker := pagination.NewChunker[T](pagination.BatchFetcherFunc[T](func(ctx context.Context, batch []uint64) ([]T, error) {
		return fetch(ctx, build(batch))
	}), c.config.BatchSize)

	return chunker.All(ctx, ids)
}

func orderOf(sort query.Sort) pagination.Order {
	switch sort {
	case query.SortIDAsc:
		return pagination.OrderIDAsc
	case query.SortNumbered:
		return pagination.OrderNumbered
	default:
		return pagination.OrderIDDesc
	}
}

// checkRecords rejects null elements in a decoded page.
func checkRecords[T interface {
	comparable
	pagination.Record
}](c *Client, req query.Request, records []T) ([]T, error) {
	var zero T
	for i, rec := range records {
		if rec == zero {
			return nil, c.decodeError(req, fmt.Errorf("null record at index %d", i))
		}
	}
	return records, nil
}

// decodeError reports a body that decoded but does not have the expected shape.
func (c *Client) decodeError(req query.Request, err error) error {
	target := req.Endpoint
	if u, urlErr := req.URL(c.baseURL); urlErr == nil {
		target = u.String()
	}
	errorsTotal.WithLabelValues(string(apierror.ClassDecode)).Inc()
	return &apierror.DecodeError{URL: target, Err: err}
}
