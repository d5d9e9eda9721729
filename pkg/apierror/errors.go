// Package apierror defines the error taxonomy shared by the client and the
// listing engine.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Class represents a classification of listing errors.
type Class string

const (
	// ClassNetwork represents transport failures (network, TLS, timeouts).
	ClassNetwork Class = "network"

	// ClassClient represents 4xx responses other than throttling.
	ClassClient Class = "client"

	// ClassServer represents 5xx responses other than throttling.
	ClassServer Class = "server"

	// ClassRateLimit represents the server rejecting a request for throttling.
	ClassRateLimit Class = "rate_limit"

	// ClassDecode represents payloads that do not match the expected schema.
	ClassDecode Class = "decode"

	// ClassNotFound represents a single identifier absent from a batch response.
	ClassNotFound Class = "not_found"
)

var (
	// ErrNotFound matches NotFoundError and 404 ServerErrors via errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited matches ServerErrors with RateLimited set via errors.Is.
	ErrRateLimited = errors.New("rate limited by server")
)

// TransportError is returned when a request never produced an HTTP response.
type TransportError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("couldn't send request to %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError is returned for every non-2xx response.
type ServerError struct {
	Status      int
	RateLimited bool
	Reason      string
	URL         string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = StatusReason(e.Status)
	}
	if reason == "" {
		return fmt.Sprintf("HTTP error %d", e.Status)
	}
	return fmt.Sprintf("HTTP error %d: %s", e.Status, reason)
}

// Is lets errors.Is match ErrNotFound and ErrRateLimited.
func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.RateLimited
	}
	return false
}

// Class returns the classification of the response.
func (e *ServerError) Class() Class {
	switch {
	case e.RateLimited:
		return ClassRateLimit
	case e.Status >= 400 && e.Status < 500:
		return ClassClient
	default:
		return ClassServer
	}
}

// DecodeError is returned when a response body does not match the expected shape.
type DecodeError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("deserialization error for %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NotFoundError marks one identifier that a successful batch response omitted.
type NotFoundError struct {
	ID uint64
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %d not found", e.ID)
}

// Is lets errors.Is match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsRateLimited reports whether a status code means the server rejected the
// request for throttling.
func IsRateLimited(status int) bool {
	return status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests
}

// ClassOf returns the classification of any error produced by the client.
// Errors outside the taxonomy (context cancellation, invalid queries) return "".
func ClassOf(err error) Class {
	var (
		transportErr *TransportError
		serverErr    *ServerError
		decodeErr    *DecodeError
		notFoundErr  *NotFoundError
	)

	switch {
	case errors.As(err, &notFoundErr):
		return ClassNotFound
	case errors.As(err, &serverErr):
		return serverErr.Class()
	case errors.As(err, &decodeErr):
		return ClassDecode
	case errors.As(err, &transportErr):
		return ClassNetwork
	default:
		return ""
	}
}

// StatusReason returns the generic explanation e621 documents for a status code.
func StatusReason(status int) string {
	switch status {
	case 403:
		return "Forbidden: Access denied. May indicate that your request lacks a User-Agent header."
	case 404:
		return "Not Found"
	case 412:
		return "Precondition failed"
	case 420:
		return "Invalid Record: Record could not be saved"
	case 421:
		return "User Throttled: User is throttled, try again later"
	case 422:
		return "Locked: The resource is locked and cannot be modified"
	case 423:
		return "Already Exists: Resource already exists"
	case 424:
		return "Invalid Parameters: The given parameters were invalid"
	case 429:
		return "Too Many Requests"
	case 500:
		return "Internal Server Error: Some unknown error occurred on the server"
	case 502:
		return "Bad Gateway: A gateway server received an invalid response from the e621 servers"
	case 503:
		return "Service Unavailable: Server cannot currently handle the request or you have exceeded the request rate limit."
	case 520:
		return "Unknown Error: Unexpected server response which violates protocol"
	case 522:
		return "Origin Connection Time-out: CloudFlare's attempt to connect to the e621 servers timed out"
	case 524:
		return "Origin Connection Time-out: the connection timed out before an HTTP response was received"
	case 525:
		return "SSL Handshake Failed: The SSL handshake between CloudFlare and the e621 servers failed"
	default:
		return ""
	}
}
