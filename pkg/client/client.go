// Package client provides the e621 API client: rate-limited requests,
// transparent pagination and batched id lookups.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/go621/pkg/apierror"
	"github.com/Sternrassler/go621/pkg/logging"
	"github.com/Sternrassler/go621/pkg/query"
	"github.com/Sternrassler/go621/pkg/ratelimit"
)

// Prometheus metrics for e621 client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "e621_requests_total",
		Help: "Total e621 requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "e621_request_duration_seconds",
		Help:    "e621 request duration in seconds by endpoint, excluding rate limit waits",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "e621_errors_total",
		Help: "Total e621 errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the production e621 host. Use https://e926.net for the
// safe-only mirror.
const DefaultBaseURL = "https://e621.net"

// Client is the main e621 client. It is safe for concurrent use; all
// listings started from one Client share its rate limit bucket.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	bucket     *ratelimit.Bucket
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API (default DefaultBaseURL).
	BaseURL string

	// User-Agent header (REQUIRED by e621)
	// Format: "AppName/Version (by username on e621)"
	UserAgent string

	// Optional API credentials, sent as HTTP basic auth.
	Login  string
	APIKey string

	// Redis client for throttle observations shared between processes (optional).
	Redis *redis.Client

	// Rate Limiting
	Bucket         *ratelimit.Bucket // Shared bucket; overrides RateCapacity and RefillInterval
	RateCapacity   int               // Burst size in requests
	RefillInterval time.Duration     // Time to regain one request token

	// BatchSize is the number of ids per bulk lookup request (0 = 320).
	BatchSize int

	// Timeout per HTTP request.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UserAgent:      userAgent,
		RateCapacity:   ratelimit.DefaultCapacity,
		RefillInterval: ratelimit.DefaultInterval,
		Timeout:        30 * time.Second,
	}
}

// New creates a new e621 client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (baseURL.Scheme != "http" && baseURL.Scheme != "https") || baseURL.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}

	if (cfg.Login == "") != (cfg.APIKey == "") {
		return nil, fmt.Errorf("login and api key must be set together")
	}

	if cfg.RateCapacity < 0 {
		return nil, fmt.Errorf("rate_capacity must be >= 0 (got %d)", cfg.RateCapacity)
	}
	if cfg.RefillInterval < 0 {
		return nil, fmt.Errorf("refill_interval must be >= 0 (got %s)", cfg.RefillInterval)
	}
	if cfg.BatchSize < 0 || cfg.BatchSize > query.MaxLimit {
		return nil, fmt.Errorf("batch_size must be between 0 and %d (got %d)", query.MaxLimit, cfg.BatchSize)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	// Initialize logger
	logger := logging.NewLogger(logging.ComponentClient)

	bucket := cfg.Bucket
	if bucket == nil {
		bucket = ratelimit.NewBucket(cfg.RateCapacity, cfg.RefillInterval)
	}

	var store ratelimit.Store
	if cfg.Redis != nil {
		store = ratelimit.NewRedisStore(cfg.Redis)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: baseURL,
		bucket:  bucket,
		tracker: ratelimit.NewTracker(store, logging.NewLogger(logging.ComponentRateLimit)),
		config:  cfg,
		logger:  logger,
	}, nil
}

// getJSON issues exactly one GET for req and decodes the body into out.
// A token is taken from the bucket before anything is sent.
func (c *Client) getJSON(ctx context.Context, req query.Request, out any) error {
	u, err := req.URL(c.baseURL)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	target := u.String()
	endpoint := metricEndpoint(req.Endpoint)

	if err := c.bucket.Acquire(ctx); err != nil {
		return err
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	if c.config.Login != "" {
		httpReq.SetBasicAuth(c.config.Login, c.config.APIKey)
	}

	c.logger.Debug().
		Str("request", req.Key()).
		Msg("Executing e621 request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(apierror.ClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return &apierror.TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(apierror.ClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return &apierror.TransportError{URL: target, Err: fmt.Errorf("read body: %w", err)}
	}

	status := strconv.Itoa(resp.StatusCode)
	requestsTotal.WithLabelValues(endpoint, status).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serverErr := newServerError(resp.StatusCode, body, target)
		errorsTotal.WithLabelValues(string(serverErr.Class())).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(serverErr.Class())).
			Msg("e621 request error")

		if serverErr.RateLimited {
			c.bucket.Drain()
			if err := c.tracker.RecordThrottle(ctx, resp.StatusCode); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to record throttle rejection")
			}
		}
		return serverErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		errorsTotal.WithLabelValues(string(apierror.ClassDecode)).Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to decode e621 response")
		return &apierror.DecodeError{URL: target, Err: err}
	}

	return nil
}

// ThrottleState returns the recorded server throttling rejections.
func (c *Client) ThrottleState(ctx context.Context) (*ratelimit.ThrottleState, error) {
	return c.tracker.GetState(ctx)
}

// RateLimitState returns a snapshot of the request bucket.
func (c *Client) RateLimitState() ratelimit.BucketState {
	return c.bucket.State()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// metricEndpoint collapses per-record paths so metric labels stay bounded.
func metricEndpoint(endpoint string) string {
	dir, file, found := strings.Cut(strings.TrimPrefix(endpoint, "/"), "/")
	if !found {
		return endpoint
	}
	if _, err := strconv.ParseUint(strings.TrimSuffix(file, ".json"), 10, 64); err == nil {
		return "/" + dir + "/{id}.json"
	}
	return endpoint
}
