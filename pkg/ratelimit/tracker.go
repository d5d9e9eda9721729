package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var throttleRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "e621_throttle_rejections_total",
	Help: "Total number of requests the server rejected for throttling, by status",
}, []string{"status"})

// Tracker records the throttling rejections returned by the server.
// It only observes; pacing is done by the Bucket.
type Tracker struct {
	store  Store
	logger zerolog.Logger
}

// NewTracker creates a tracker on the given store. A nil store keeps state in memory.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		logger: logger,
	}
}

// RecordThrottle stores one rejection with the given HTTP status.
func (t *Tracker) RecordThrottle(ctx context.Context, status int) error {
	now := time.Now()
	if err := t.store.RecordRejection(ctx, status, now); err != nil {
		return fmt.Errorf("record throttle: %w", err)
	}

	throttleRejectionsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

	t.logger.Warn().
		Int("status", status).
		Time("rejected_at", now).
		Msg("e621 rejected request for throttling")

	return nil
}

// GetState retrieves the current throttle state.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load throttle state: %w", err)
	}
	return state, nil
}
