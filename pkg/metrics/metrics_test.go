package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sternrassler/go621/pkg/ratelimit"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler_ExposesRateLimitMetrics(t *testing.T) {
	bucket := ratelimit.NewBucket(1, 0)
	if err := bucket.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, name := range []string{"e621_ratelimit_acquisitions_total", "e621_ratelimit_wait_seconds"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output should contain %s", name)
		}
	}
}
