package client

import (
	"errors"
	"testing"

	"github.com/Sternrassler/go621/pkg/apierror"
)

func TestNewServerError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		reason      string
		rateLimited bool
		class       apierror.Class
		message     string
	}{
		{
			name:    "reason from body",
			status:  422,
			body:    `{"success": false, "reason": "invalid tag"}`,
			reason:  "invalid tag",
			class:   apierror.ClassClient,
			message: "HTTP error 422: invalid tag",
		},
		{
			name:    "message from body",
			status:  500,
			body:    `{"message": "database timeout"}`,
			reason:  "database timeout",
			class:   apierror.ClassServer,
			message: "HTTP error 500: database timeout",
		},
		{
			name:        "html body falls back to generic reason",
			status:      503,
			body:        `<html>busy</html>`,
			rateLimited: true,
			class:       apierror.ClassRateLimit,
			message:     "HTTP error 503: " + apierror.StatusReason(503),
		},
		{
			name:        "too many requests",
			status:      429,
			body:        ``,
			rateLimited: true,
			class:       apierror.ClassRateLimit,
			message:     "HTTP error 429: Too Many Requests",
		},
		{
			name:    "unknown status without body",
			status:  418,
			class:   apierror.ClassClient,
			message: "HTTP error 418",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newServerError(tt.status, []byte(tt.body), "https://e621.net/posts.json")

			if err.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", err.Reason, tt.reason)
			}
			if err.RateLimited != tt.rateLimited {
				t.Errorf("RateLimited = %v, want %v", err.RateLimited, tt.rateLimited)
			}
			if err.Class() != tt.class {
				t.Errorf("Class() = %q, want %q", err.Class(), tt.class)
			}
			if err.Error() != tt.message {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.message)
			}
			if errors.Is(err, apierror.ErrRateLimited) != tt.rateLimited {
				t.Errorf("errors.Is(ErrRateLimited) = %v, want %v", !tt.rateLimited, tt.rateLimited)
			}
		})
	}
}

func TestNewServerError_NotFound(t *testing.T) {
	err := newServerError(404, []byte(`{"success": false, "reason": "not found"}`), "https://e621.net/posts/1.json")
	if !errors.Is(err, apierror.ErrNotFound) {
		t.Error("404 should match ErrNotFound")
	}
}

func TestMetricEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		expected string
	}{
		{"/posts.json", "/posts.json"},
		{"/posts/8595.json", "/posts/{id}.json"},
		{"/pools.json", "/pools.json"},
		{"/tags/autocomplete.json", "/tags/autocomplete.json"},
	}

	for _, tt := range tests {
		if got := metricEndpoint(tt.endpoint); got != tt.expected {
			t.Errorf("metricEndpoint(%q) = %q, want %q", tt.endpoint, got, tt.expected)
		}
	}
}
