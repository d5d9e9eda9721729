//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis runs a throwaway redis:7 container for the duration of the test.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())

	return rdb
}

func TestRedisStore_Integration_RoundTrip(t *testing.T) {
	rdb := startRedis(t)
	tracker := NewTracker(NewRedisStore(rdb), zerolog.Nop())
	ctx := context.Background()

	state, err := tracker.GetState(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.Rejections)
	assert.True(t, state.LastRejectedAt.IsZero(), "fresh store has no rejection time")

	require.NoError(t, tracker.RecordThrottle(ctx, http.StatusServiceUnavailable))
	require.NoError(t, tracker.RecordThrottle(ctx, http.StatusTooManyRequests))

	state, err = tracker.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.Rejections)
	assert.Equal(t, http.StatusTooManyRequests, state.LastStatus)
	assert.WithinDuration(t, time.Now(), state.LastRejectedAt, 5*time.Second)
	assert.False(t, state.IsStale(time.Minute))
	assert.True(t, state.Recent(time.Minute))

	ttl := rdb.TTL(ctx, RedisKeyRejections).Val()
	assert.True(t, ttl < 0, "rejection counter should not expire (ttl %v)", ttl)
}

func TestRedisStore_Integration_ReplicasShareCounter(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	const replicas = 10
	var wg sync.WaitGroup
	for range replicas {
		wg.Add(1)
		go func() {
			defer wg.Done()
			replica := NewTracker(NewRedisStore(rdb), zerolog.Nop())
			assert.NoError(t, replica.RecordThrottle(ctx, http.StatusServiceUnavailable))
		}()
	}
	wg.Wait()

	state, err := NewTracker(NewRedisStore(rdb), zerolog.Nop()).GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(replicas), state.Rejections)
	assert.Equal(t, http.StatusServiceUnavailable, state.LastStatus)
}
