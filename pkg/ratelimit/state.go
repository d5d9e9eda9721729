// Package ratelimit paces outbound e621 requests with a shared token bucket
// and tracks the throttling rejections the server reports back.
package ratelimit

import (
	"math"
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyRejections     = "e621:throttle:rejections"
	RedisKeyLastStatus     = "e621:throttle:last_status"
	RedisKeyLastRejectedAt = "e621:throttle:last_rejected_at"
	RedisKeyLastUpdate     = "e621:throttle:last_update"
)

// Defaults matching e621's published limits: a hard cap of two requests per
// second and roughly one per second sustained.
const (
	DefaultCapacity = 1
	DefaultInterval = 600 * time.Millisecond
)

// BucketState is a consistent snapshot of a Bucket.
type BucketState struct {
	// Tokens is the fractional budget available at LastRefill.
	Tokens float64 `json:"tokens"`

	// Capacity is the maximum number of tokens the bucket holds.
	Capacity int `json:"capacity"`

	// Interval is the time it takes to refill one token.
	Interval time.Duration `json:"interval"`

	// LastRefill is when Tokens was last brought up to date.
	LastRefill time.Time `json:"last_refill"`
}

// Available returns the number of whole requests that can be issued right now.
func (s BucketState) Available() int {
	return int(math.Floor(s.Tokens))
}

// IsEmpty returns true if the next acquisition will have to wait.
func (s BucketState) IsEmpty() bool {
	return s.Tokens < 1
}

// TimeUntilToken returns how long after LastRefill one whole token exists.
// Returns 0 if a token is already available.
func (s BucketState) TimeUntilToken() time.Duration {
	if !s.IsEmpty() {
		return 0
	}
	return time.Duration((1 - s.Tokens) * float64(s.Interval))
}

// ThrottleState summarises the throttling rejections received from the server.
// With a Redis store it is shared by every process using the same keys.
type ThrottleState struct {
	// Rejections is the number of requests the server refused with 503 or 429.
	Rejections int64 `json:"rejections"`

	// LastStatus is the HTTP status of the most recent rejection.
	LastStatus int `json:"last_status,omitempty"`

	// LastRejectedAt is when the most recent rejection was observed.
	LastRejectedAt time.Time `json:"last_rejected_at,omitempty"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update,omitempty"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *ThrottleState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// Recent returns true if a rejection was observed within the given window.
func (s *ThrottleState) Recent(window time.Duration) bool {
	if s.LastRejectedAt.IsZero() {
		return false
	}
	return time.Since(s.LastRejectedAt) <= window
}
