package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists throttle observations.
type Store interface {
	// RecordRejection counts one throttling rejection with the given status.
	RecordRejection(ctx context.Context, status int, at time.Time) error

	// Load returns the current state. An empty store returns a zero state.
	Load(ctx context.Context) (*ThrottleState, error)
}

// MemoryStore keeps throttle state in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state ThrottleState
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// RecordRejection implements Store.
func (m *MemoryStore) RecordRejection(_ context.Context, status int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Rejections++
	m.state.LastStatus = status
	m.state.LastRejectedAt = at
	m.state.LastUpdate = at
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (*ThrottleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.state
	return &state, nil
}

// RedisStore shares throttle state between processes through Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store backed by the given Redis client.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

// RecordRejection implements Store.
func (r *RedisStore) RecordRejection(ctx context.Context, status int, at time.Time) error {
	atJSON, err := json.Marshal(at)
	if err != nil {
		return fmt.Errorf("marshal rejection time: %w", err)
	}

	pipe := r.redis.TxPipeline()
	pipe.Incr(ctx, RedisKeyRejections)
	pipe.Set(ctx, RedisKeyLastStatus, status, 0)
	pipe.Set(ctx, RedisKeyLastRejectedAt, atJSON, 0)
	pipe.Set(ctx, RedisKeyLastUpdate, atJSON, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store throttle state in redis: %w", err)
	}
	return nil
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (*ThrottleState, error) {
	rejections, err := r.redis.Get(ctx, RedisKeyRejections).Int64()
	if err == redis.Nil {
		return &ThrottleState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rejections: %w", err)
	}

	lastStatus, err := r.redis.Get(ctx, RedisKeyLastStatus).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last status: %w", err)
	}

	lastRejectedAt, err := r.getTime(ctx, RedisKeyLastRejectedAt)
	if err != nil {
		return nil, fmt.Errorf("get last rejection: %w", err)
	}

	lastUpdate, err := r.getTime(ctx, RedisKeyLastUpdate)
	if err != nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	return &ThrottleState{
		Rejections:     rejections,
		LastStatus:     lastStatus,
		LastRejectedAt: lastRejectedAt,
		LastUpdate:     lastUpdate,
	}, nil
}

func (r *RedisStore) getTime(ctx context.Context, key string) (time.Time, error) {
	var t time.Time

	raw, err := r.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return t, nil
	}
	if err != nil {
		return t, err
	}

	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("parse %s: %w", key, err)
	}
	return t, nil
}
