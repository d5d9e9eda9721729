//go:build integration

package client

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/go621/internal/testutil"
	"github.com/Sternrassler/go621/pkg/apierror"
	"github.com/Sternrassler/go621/pkg/query"
	"github.com/Sternrassler/go621/pkg/ratelimit"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_FullListingFlow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockE621()
	defer mock.Close()
	addTaggedPosts(mock, 100, "fox")

	cfg := DefaultConfig(testUserAgent)
	cfg.BaseURL = mock.URL()
	cfg.Redis = redisClient
	cfg.RefillInterval = 10 * time.Millisecond

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer c.Close()

	count := 0
	for _, err := range c.SearchPosts(context.Background(), query.NewPostQuery("fox").WithPageSize(30)) {
		if err != nil {
			t.Fatalf("SearchPosts() error = %v", err)
		}
		count++
	}

	if count != 100 {
		t.Errorf("count = %d, want 100", count)
	}
	if got := mock.GetRequestCount(); got != 4 {
		t.Errorf("requests = %d, want 4", got)
	}
}

func TestIntegration_ThrottleStateSharedAcrossClients(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockE621()
	defer mock.Close()
	mock.FailNext(testutil.NewThrottledResponse())
	mock.FailNext(testutil.MockResponse{StatusCode: http.StatusTooManyRequests})

	newClient := func() *Client {
		cfg := DefaultConfig(testUserAgent)
		cfg.BaseURL = mock.URL()
		cfg.Redis = redisClient
		cfg.RefillInterval = 10 * time.Millisecond
		c, err := New(cfg)
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		t.Cleanup(func() { c.Close() })
		return c
	}

	first, second := newClient(), newClient()
	ctx := context.Background()

	for _, c := range []*Client{first, second} {
		if _, err := c.Post(ctx, 1); err == nil || apierror.ClassOf(err) != apierror.ClassRateLimit {
			t.Fatalf("Post() error = %v, want rate limit error", err)
		}
	}

	state, err := first.ThrottleState(ctx)
	if err != nil {
		t.Fatalf("ThrottleState() error = %v", err)
	}
	if state.Rejections != 2 {
		t.Errorf("Rejections = %d, want 2", state.Rejections)
	}
	if state.LastStatus != http.StatusTooManyRequests {
		t.Errorf("LastStatus = %d, want 429", state.LastStatus)
	}
	if !state.Recent(time.Minute) {
		t.Error("state should report a recent rejection")
	}

	shared := ratelimit.NewTracker(ratelimit.NewRedisStore(redisClient), zerolog.Nop())
	other, err := shared.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if other.Rejections != state.Rejections {
		t.Errorf("tracker on the same redis sees %d rejections, want %d", other.Rejections, state.Rejections)
	}
}
