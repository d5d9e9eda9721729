package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for bucket acquisitions.
var (
	acquisitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "e621_ratelimit_acquisitions_total",
		Help: "Total number of request tokens taken from rate limit buckets",
	})

	acquireWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "e621_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a request token",
		Buckets: []float64{0, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	acquireCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "e621_ratelimit_cancelled_total",
		Help: "Total number of acquisitions abandoned before a token was available",
	})
)

// Bucket is a token bucket shared by every listing issued from one client.
// Tokens are refilled lazily from elapsed time on each acquisition attempt.
type Bucket struct {
	mu         sync.Mutex
	clock      clock.Clock
	capacity   float64
	interval   time.Duration
	tokens     float64
	lastRefill time.Time
}

// BucketOption configures a Bucket.
type BucketOption func(*Bucket)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) BucketOption {
	return func(b *Bucket) {
		b.clock = c
	}
}

// NewBucket creates a full bucket holding capacity tokens and refilling one
// token per interval. Non-positive arguments fall back to the defaults.
func NewBucket(capacity int, interval time.Duration, opts ...BucketOption) *Bucket {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	b := &Bucket{
		clock:    clock.New(),
		capacity: float64(capacity),
		interval: interval,
		tokens:   float64(capacity),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lastRefill = b.clock.Now()

	return b
}

// Acquire blocks until a token is available and takes it.
// If ctx ends first, nothing is consumed and ctx.Err() is returned.
func (b *Bucket) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := b.clock.Now()
	for {
		b.mu.Lock()
		now := b.clock.Now()
		b.refill(now)
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()

			acquisitionsTotal.Inc()
			acquireWaitSeconds.Observe(now.Sub(start).Seconds())
			return nil
		}
		wait := time.Duration((1 - b.tokens) * float64(b.interval))
		b.mu.Unlock()

		if wait <= 0 {
			wait = time.Nanosecond
		}

		timer := b.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			acquireCancelledTotal.Inc()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Drain empties the bucket so the next acquisition waits a full interval.
// Used when the server itself rejected a request for throttling.
func (b *Bucket) Drain() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.clock.Now())
	b.tokens = 0
}

// State returns a snapshot of the bucket brought up to date.
func (b *Bucket) State() BucketState {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.clock.Now())
	return BucketState{
		Tokens:     b.tokens,
		Capacity:   int(b.capacity),
		Interval:   b.interval,
		LastRefill: b.lastRefill,
	}
}

// refill must be called with mu held.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}

	b.tokens += float64(elapsed) / float64(b.interval)
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}
