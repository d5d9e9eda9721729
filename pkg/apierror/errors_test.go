package apierror

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestServerError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ServerError
		expected string
	}{
		{
			name:     "with server reason",
			err:      &ServerError{Status: 500, Reason: "foo"},
			expected: "HTTP error 500: foo",
		},
		{
			name:     "generic reason",
			err:      &ServerError{Status: 404},
			expected: "HTTP error 404: Not Found",
		},
		{
			name:     "unknown status",
			err:      &ServerError{Status: 418},
			expected: "HTTP error 418",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestServerError_Is(t *testing.T) {
	notFound := &ServerError{Status: 404}
	throttled := &ServerError{Status: 503, RateLimited: true}

	if !errors.Is(notFound, ErrNotFound) {
		t.Error("404 should match ErrNotFound")
	}
	if errors.Is(notFound, ErrRateLimited) {
		t.Error("404 should not match ErrRateLimited")
	}
	if !errors.Is(fmt.Errorf("wrapped: %w", throttled), ErrRateLimited) {
		t.Error("wrapped 503 should match ErrRateLimited")
	}
	if errors.Is(throttled, ErrNotFound) {
		t.Error("503 should not match ErrNotFound")
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Class
	}{
		{"transport", &TransportError{URL: "u", Err: io.EOF}, ClassNetwork},
		{"client", &ServerError{Status: 403}, ClassClient},
		{"server", &ServerError{Status: 502}, ClassServer},
		{"rate limit", &ServerError{Status: 503, RateLimited: true}, ClassRateLimit},
		{"decode", &DecodeError{URL: "u", Err: io.ErrUnexpectedEOF}, ClassDecode},
		{"not found", &NotFoundError{ID: 7}, ClassNotFound},
		{"wrapped", fmt.Errorf("listing: %w", &ServerError{Status: 500}), ClassServer},
		{"foreign", io.EOF, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.expected {
				t.Errorf("ClassOf() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	for status, expected := range map[int]bool{200: false, 404: false, 429: true, 500: false, 503: true} {
		if got := IsRateLimited(status); got != expected {
			t.Errorf("IsRateLimited(%d) = %v, want %v", status, got, expected)
		}
	}
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{ID: 7}
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if !strings.Contains(err.Error(), "7") {
		t.Errorf("Error() = %q, want id in message", err.Error())
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := &TransportError{URL: "https://e621.net/posts.json", Err: io.ErrUnexpectedEOF}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("TransportError should unwrap to its cause")
	}
}
