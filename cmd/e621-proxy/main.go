// Command e621-proxy serves e621 listings as NDJSON and runs one-off
// searches and id lookups from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/go621/pkg/client"
	"github.com/Sternrassler/go621/pkg/logging"
	"github.com/Sternrassler/go621/pkg/ratelimit"
)

// options are the flags shared by every subcommand.
type options struct {
	baseURL        string
	userAgent      string
	login          string
	apiKey         string
	redisURL       string
	refillInterval time.Duration
	logLevel       string
	pretty         bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "e621-proxy",
		Short:        "Rate-limited e621 listings over HTTP and the command line.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logging.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logging.Setup(logging.Config{
				Level:   level,
				Pretty:  opts.pretty,
				Output:  cmd.ErrOrStderr(),
				Service: logging.ComponentProxy,
			})
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", getEnv("E621_BASE_URL", client.DefaultBaseURL), "API base url (https://e926.net for the safe mirror)")
	flags.StringVar(&opts.userAgent, "user-agent", getEnv("USER_AGENT", "go621-proxy/0.1.0 (by anonymous on e621)"), "User-Agent sent with every request")
	flags.StringVar(&opts.login, "login", getEnv("E621_LOGIN", ""), "account name for API key authentication")
	flags.StringVar(&opts.apiKey, "api-key", getEnv("E621_API_KEY", ""), "API key for authentication")
	flags.StringVar(&opts.redisURL, "redis-url", getEnv("REDIS_URL", ""), "redis url for shared throttle observations (e.g. redis://localhost:6379/0)")
	flags.DurationVar(&opts.refillInterval, "refill-interval", ratelimit.DefaultInterval, "time to regain one request token")
	flags.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.pretty, "pretty", false, "human readable logs")

	rootCmd.AddCommand(newServeCmd(opts), newSearchCmd(opts), newFetchCmd(opts))
	return rootCmd
}

// buildClient creates the e621 client and, when configured, its redis
// connection. The returned func releases both.
func buildClient(ctx context.Context, opts *options) (*client.Client, func(), error) {
	cfg := client.DefaultConfig(opts.userAgent)
	cfg.BaseURL = opts.baseURL
	cfg.Login = opts.login
	cfg.APIKey = opts.apiKey
	cfg.RefillInterval = opts.refillInterval

	var redisClient *redis.Client
	if opts.redisURL != "" {
		redisOpts, err := redis.ParseURL(opts.redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
		cfg.Redis = redisClient
	}

	c, err := client.New(cfg)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, fmt.Errorf("create e621 client: %w", err)
	}

	cleanup := func() {
		c.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}
	return c, cleanup, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIDs accepts ids separated by commas and/or given as separate arguments.
func parseIDs(args ...string) ([]uint64, error) {
	var ids []uint64
	for _, arg := range args {
		for _, field := range strings.Split(arg, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			id, err := strconv.ParseUint(field, 10, 64)
			if err != nil || id == 0 {
				return nil, fmt.Errorf("invalid id %q", field)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one id is required")
	}
	return ids, nil
}
