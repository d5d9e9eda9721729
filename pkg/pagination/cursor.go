package pagination

import (
	"context"
	"errors"
	"iter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for listing drivers.
var (
	requestsIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "e621_listing_requests_total",
		Help: "Total number of page or batch requests issued by listing drivers",
	}, []string{"driver"})

	recordsYieldedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "e621_listing_records_total",
		Help: "Total number of records handed to callers by listing drivers",
	}, []string{"driver"})

	notFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "e621_listing_not_found_total",
		Help: "Total number of requested ids missing from batch responses",
	})
)

const (
	// MaxPageSize is the server's cap on records per request.
	MaxPageSize = 320

	// MaxBatchSize is the largest id batch sent in one request.
	MaxBatchSize = 320
)

// ErrDone is returned by Cursor.Next once the listing is exhausted or failed.
var ErrDone = errors.New("listing is done")

// Record is anything with a server-assigned positive id.
type Record interface {
	RecordID() uint64
}

// PageFetcher is the request issuer a Cursor pulls pages from.
type PageFetcher[T Record] interface {
	// FetchPage fetches up to limit records starting at marker.
	FetchPage(ctx context.Context, marker Marker, limit int) ([]T, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T Record] func(ctx context.Context, marker Marker, limit int) ([]T, error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, marker Marker, limit int) ([]T, error) {
	return f(ctx, marker, limit)
}

// Order selects how the marker advances between pages.
type Order int

const (
	// OrderIDDesc continues with Before(lowest id seen).
	OrderIDDesc Order = iota
	// OrderIDAsc continues with After(highest id seen).
	OrderIDAsc
	// OrderNumbered continues with the next page number.
	OrderNumbered
)

// State is the lifecycle state of a Cursor.
type State int

const (
	StateFresh State = iota
	StateInProgress
	StateExhausted
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateInProgress:
		return "in_progress"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CursorConfig holds cursor configuration.
type CursorConfig struct {
	// PageSize is the number of records requested per page (default MaxPageSize).
	PageSize int

	// Max bounds the total number of records produced (0 = unbounded).
	Max int

	// Order decides how the marker advances.
	Order Order

	// Start is the marker of the first request (zero = beginning).
	Start Marker
}

// Cursor drives one paginated listing. It is not safe for concurrent use.
type Cursor[T Record] struct {
	fetcher   PageFetcher[T]
	pageSize  int
	remaining int // -1 when unbounded
	order     Order
	marker    Marker
	state     State
	err       error
	requests  int
}

// NewCursor creates a cursor in the Fresh state. No request is issued until
// the first advance.
func NewCursor[T Record](fetcher PageFetcher[T], config CursorConfig) *Cursor[T] {
	if config.PageSize <= 0 || config.PageSize > MaxPageSize {
		config.PageSize = MaxPageSize
	}

	remaining := -1
	if config.Max > 0 {
		remaining = config.Max
	}

	return &Cursor[T]{
		fetcher:   fetcher,
		pageSize:  config.PageSize,
		remaining: remaining,
		order:     config.Order,
		marker:    config.Start,
		state:     StateFresh,
	}
}

// State returns the current state.
func (c *Cursor[T]) State() State {
	return c.state
}

// Marker returns the marker the next request will use.
func (c *Cursor[T]) Marker() Marker {
	return c.marker
}

// Err returns the error that failed the cursor, if any.
func (c *Cursor[T]) Err() error {
	return c.err
}

// Requests returns the number of page requests issued so far.
func (c *Cursor[T]) Requests() int {
	return c.requests
}

// Done reports whether no further requests will be issued.
func (c *Cursor[T]) Done() bool {
	return c.state == StateExhausted || c.state == StateFailed
}

// Next issues exactly one page request and returns its records.
// An empty page with a nil error means the listing just became exhausted.
// Once Done, Next returns ErrDone without issuing requests.
func (c *Cursor[T]) Next(ctx context.Context) ([]T, error) {
	if c.Done() {
		return nil, ErrDone
	}

	limit := c.pageSize
	if c.remaining >= 0 && c.remaining < limit {
		limit = c.remaining
	}

	page, err := c.fetcher.FetchPage(ctx, c.marker, limit)
	c.requests++
	requestsIssuedTotal.WithLabelValues("cursor").Inc()
	if err != nil {
		c.state = StateFailed
		c.err = err
		return nil, err
	}

	if len(page) == 0 {
		c.state = StateExhausted
		return nil, nil
	}
	if len(page) > limit {
		page = page[:limit]
	}

	next := c.nextMarker(page)
	repeated := next == c.marker
	c.marker = next

	if c.remaining > 0 {
		c.remaining -= len(page)
	}

	switch {
	case c.remaining == 0:
		c.state = StateExhausted
	case len(page) < limit:
		c.state = StateExhausted
	case repeated:
		// The server ignored the marker; asking again would loop forever.
		c.state = StateExhausted
	default:
		c.state = StateInProgress
	}

	return page, nil
}

// All returns the listing as a lazy sequence. A page is only requested when
// the consumer asks for a record past the ones already fetched; stopping the
// range loop issues nothing further. A failure is yielded once as the last
// element.
func (c *Cursor[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		yielded := 0
		for !c.Done() {
			page, err := c.Next(ctx)
			if err != nil {
				log.Debug().
					Err(err).
					Int("requests", c.requests).
					Int("records", yielded).
					Msg("Listing failed")

				var zero T
				yield(zero, err)
				return
			}

			for _, rec := range page {
				yielded++
				recordsYieldedTotal.WithLabelValues("cursor").Inc()
				if !yield(rec, nil) {
					log.Debug().
						Int("requests", c.requests).
						Int("records", yielded).
						Msg("Listing abandoned by caller")
					return
				}
			}
		}

		log.Debug().
			Int("requests", c.requests).
			Int("records", yielded).
			Str("state", c.state.String()).
			Msg("Listing complete")
	}
}

// nextMarker computes the position after page, which must not be empty.
func (c *Cursor[T]) nextMarker(page []T) Marker {
	minID, maxID := page[0].RecordID(), page[0].RecordID()
	for _, rec := range page[1:] {
		id := rec.RecordID()
		if id < minID {
			minID = id
		}
		if id > maxID {
			maxID = id
		}
	}

	switch c.marker.kind {
	case markerBefore:
		return Before(minID)
	case markerAfter:
		return After(maxID)
	case markerPage:
		return Page(c.marker.value + 1)
	}

	switch c.order {
	case OrderIDAsc:
		return After(maxID)
	case OrderNumbered:
		return Page(2)
	default:
		return Before(minID)
	}
}
