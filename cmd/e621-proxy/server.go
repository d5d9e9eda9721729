package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/go621/pkg/apierror"
	"github.com/Sternrassler/go621/pkg/client"
	"github.com/Sternrassler/go621/pkg/logging"
	"github.com/Sternrassler/go621/pkg/metrics"
	"github.com/Sternrassler/go621/pkg/query"
	"github.com/Sternrassler/go621/pkg/ratelimit"
	"github.com/Sternrassler/go621/pkg/record"
)

// defaultListingLimit bounds listings that do not pass ?limit.
const defaultListingLimit = 320

type requestIDKey struct{}

type server struct {
	client *client.Client
	logger zerolog.Logger
}

func newServer(c *client.Client) *server {
	return &server{
		client: c,
		logger: logging.NewLogger(logging.ComponentProxy),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /status", s.statusHandler)
	mux.HandleFunc("GET /posts", s.postsHandler)
	mux.HandleFunc("GET /posts/ids", s.postIDsHandler)
	mux.HandleFunc("GET /pools", s.poolsHandler)
	mux.HandleFunc("GET /pools/ids", s.poolIDsHandler)
	mux.HandleFunc("GET /tags", s.tagsHandler)
	return requestID(mux)
}

// requestID tags each request with an X-Request-ID, generating one if absent.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

type statusResponse struct {
	Bucket   ratelimit.BucketState    `json:"bucket"`
	Throttle *ratelimit.ThrottleState `json:"throttle"`
}

func (s *server) statusHandler(w http.ResponseWriter, r *http.Request) {
	throttle, err := s.client.ThrottleState(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load throttle state")
		http.Error(w, fmt.Sprintf("load throttle state: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		Bucket:   s.client.RateLimitState(),
		Throttle: throttle,
	})
}

func (s *server) postsHandler(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit, pageSize, err := listingLimits(params.Get("limit"), params.Get("page_size"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := query.NewPostQuery(params["tags"]...).WithMax(limit).WithPageSize(pageSize)
	if err := q.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.stream(w, r, "/posts", func(out io.Writer) (int, error) {
		return writeListing(out, s.client.SearchPosts(r.Context(), q))
	})
}

func (s *server) postIDsHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query()["ids"]...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.stream(w, r, "/posts/ids", func(out io.Writer) (int, error) {
		return writeLookup(out, ids, s.client.PostsByIDs(r.Context(), ids))
	})
}

func (s *server) poolsHandler(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit, pageSize, err := listingLimits(params.Get("limit"), params.Get("page_size"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	search := query.PoolSearch{
		NameMatches: params.Get("name"),
		CreatorName: params.Get("creator"),
		Category:    record.PoolCategory(params.Get("category")),
		Order:       query.PoolOrder(params.Get("order")),
		PageSize:    pageSize,
		Max:         limit,
	}

	s.stream(w, r, "/pools", func(out io.Writer) (int, error) {
		return writeListing(out, s.client.SearchPools(r.Context(), search))
	})
}

func (s *server) poolIDsHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query()["ids"]...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.stream(w, r, "/pools/ids", func(out io.Writer) (int, error) {
		return writeLookup(out, ids, s.client.PoolsByIDs(r.Context(), ids))
	})
}

func (s *server) tagsHandler(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit, pageSize, err := listingLimits(params.Get("limit"), params.Get("page_size"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	search := query.TagSearch{
		NameMatches: params.Get("name"),
		Order:       query.TagOrder(params.Get("order")),
		HideEmpty:   params.Get("hide_empty") == "true",
		PageSize:    pageSize,
		Max:         limit,
	}
	for _, raw := range params["category"] {
		category, err := record.ParseTagCategory(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		search.Categories = append(search.Categories, category)
	}

	s.stream(w, r, "/tags", func(out io.Writer) (int, error) {
		return writeListing(out, s.client.SearchTags(r.Context(), search))
	})
}

// stream writes an NDJSON body produced by write and logs the outcome.
func (s *server) stream(w http.ResponseWriter, r *http.Request, route string, write func(io.Writer) (int, error)) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	count, err := write(flushWriter{w})

	id, _ := r.Context().Value(requestIDKey{}).(string)
	event := s.logger.Info()
	if err != nil {
		event = s.logger.Warn().Err(err)
	}
	event.
		Str("request_id", id).
		Str("route", route).
		Int("records", count).
		Msg("Listing served")
}

// flushWriter pushes each NDJSON line to the client as soon as it is written.
type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if flusher, ok := f.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return n, err
}

// errorLine is the NDJSON element emitted in place of a failed record.
type errorLine struct {
	Error string         `json:"error"`
	Class apierror.Class `json:"class,omitempty"`
	ID    uint64         `json:"id,omitempty"`
}

// writeListing writes one line per record and one line for a terminal error.
// It stops the listing as soon as the writer fails. The returned count is the
// number of records written.
func writeListing[T any](out io.Writer, seq iter.Seq2[T, error]) (int, error) {
	enc := json.NewEncoder(out)
	count := 0
	for rec, err := range seq {
		if err != nil {
			if encErr := enc.Encode(errorLine{Error: err.Error(), Class: apierror.ClassOf(err)}); encErr != nil {
				return count, encErr
			}
			return count, err
		}
		if err := enc.Encode(rec); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// writeLookup writes one line per requested id, in order. Failed slots carry
// the id they stand for.
func writeLookup[T any](out io.Writer, ids []uint64, seq iter.Seq2[T, error]) (int, error) {
	enc := json.NewEncoder(out)
	count, i := 0, 0
	var failed error
	for rec, err := range seq {
		id := ids[i]
		i++
		if err != nil {
			if !errors.Is(err, apierror.ErrNotFound) {
				failed = err
			}
			if encErr := enc.Encode(errorLine{Error: err.Error(), Class: apierror.ClassOf(err), ID: id}); encErr != nil {
				return count, encErr
			}
			continue
		}
		if err := enc.Encode(rec); err != nil {
			return count, err
		}
		count++
	}
	return count, failed
}

// listingLimits parses the optional limit and page_size parameters. Every
// proxied listing is bounded, so limit must be positive.
func listingLimits(rawLimit, rawPageSize string) (int, int, error) {
	limit := defaultListingLimit
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("invalid limit %q (must be at least 1)", rawLimit)
		}
		limit = n
	}

	pageSize := 0
	if rawPageSize != "" {
		n, err := strconv.Atoi(strings.TrimSpace(rawPageSize))
		if err != nil || n < 0 || n > query.MaxLimit {
			return 0, 0, fmt.Errorf("invalid page_size %q", rawPageSize)
		}
		pageSize = n
	}

	return limit, pageSize, nil
}
