// Package logging configures zerolog for the e621 client and proxy.
//
// Setup installs the process-wide logger once at startup; packages derive
// component loggers from it with NewLogger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name accepted from flags and the environment.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used with NewLogger.
const (
	ComponentClient    = "e621-client"
	ComponentRateLimit = "ratelimit"
	ComponentProxy     = "e621-proxy"
)

var levels = map[string]struct {
	name  LogLevel
	level zerolog.Level
}{
	"debug":   {LevelDebug, zerolog.DebugLevel},
	"info":    {LevelInfo, zerolog.InfoLevel},
	"":        {LevelInfo, zerolog.InfoLevel},
	"warn":    {LevelWarn, zerolog.WarnLevel},
	"warning": {LevelWarn, zerolog.WarnLevel},
	"error":   {LevelError, zerolog.ErrorLevel},
}

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// Service is attached to every entry when set.
	Service string
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	with := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		with = with.Str("service", cfg.Service)
	}

	log.Logger = with.Logger()
	return log.Logger
}

// ParseLevel validates a level name. The empty string means info.
func ParseLevel(s string) (LogLevel, error) {
	entry, ok := levels[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return entry.name, nil
}

// parseLevel maps a LogLevel onto zerolog, falling back to info.
func parseLevel(level LogLevel) zerolog.Level {
	if entry, ok := levels[strings.ToLower(string(level))]; ok {
		return entry.level
	}
	return zerolog.InfoLevel
}

// NewLogger derives a logger tagged with component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Levels in use:
//
// Debug: every outbound request (request key), listing progress and
// abandonment, failed batches.
//
// Info: proxy startup and shutdown, listings served.
//
// Warn: non-2xx responses, server throttling (503/429), decode failures,
// throttle store errors.
//
// Error: transport failures.
//
// Common fields: component, endpoint (per-record ids collapsed to {id}),
// request (e621:posts.json:limit=320:tags=fox), status_code, error_class,
// requests, records, request_id.
