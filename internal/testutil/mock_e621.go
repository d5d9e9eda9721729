// Package testutil provides testing utilities for the e621 client.
package testutil

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/Sternrassler/go621/pkg/record"
)

const (
	defaultLimit = 75
	maxLimit     = 320
)

// MockResponse defines a canned response for a mock e621 endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockE621 is an in-memory e621 server for testing. It serves posts, pools
// and tags with the real endpoints' paging semantics.
type MockE621 struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	failures []MockResponse

	posts map[uint64]*record.Post
	pools map[uint64]*record.Pool
	tags  map[uint64]*record.Tag

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	Queries           []url.Values
}

// NewMockE621 creates a new mock e621 server.
func NewMockE621() *MockE621 {
	mock := &MockE621{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		posts:    make(map[uint64]*record.Post),
		pools:    make(map[uint64]*record.Pool),
		tags:     make(map[uint64]*record.Tag),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.Queries = append(mock.Queries, r.URL.Query())

		var failure *MockResponse
		if len(mock.failures) > 0 {
			failure = &mock.failures[0]
			mock.failures = mock.failures[1:]
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if failure != nil {
			writeResponse(w, *failure)
			return
		}

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockE621) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockE621) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockE621) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.Queries = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockE621) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockE621) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, resp)
	})
}

// FailNext makes the next request, whatever its path, answer with resp.
// Calls queue up.
func (m *MockE621) FailNext(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, resp)
}

// AddPosts stores posts served by /posts.json and /posts/<id>.json.
func (m *MockE621) AddPosts(posts ...*record.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range posts {
		m.posts[p.ID] = p
	}
}

// AddPools stores pools served by /pools.json.
func (m *MockE621) AddPools(pools ...*record.Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pools {
		m.pools[p.ID] = p
	}
}

// AddTags stores tags served by /tags.json.
func (m *MockE621) AddTags(tags ...*record.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tags {
		m.tags[t.ID] = t
	}
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockE621) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetQueries returns the query parameters of every request, in order.
func (m *MockE621) GetQueries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.Queries)
}

// GetLastRequestHeader returns the headers of the latest request.
func (m *MockE621) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// defaultHandler routes to the in-memory endpoints.
func (m *MockE621) defaultHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/posts.json":
		m.handlePosts(w, r)
	case strings.HasPrefix(path, "/posts/") && strings.HasSuffix(path, ".json"):
		m.handlePost(w, strings.TrimSuffix(strings.TrimPrefix(path, "/posts/"), ".json"))
	case path == "/pools.json":
		m.handlePools(w, r)
	case path == "/tags.json":
		m.handleTags(w, r)
	default:
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	}
}

func (m *MockE621) handlePosts(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	terms := strings.Fields(params.Get("tags"))

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(terms) == 1 && strings.HasPrefix(terms[0], "id:") {
		ids, err := parseIDs(strings.TrimPrefix(terms[0], "id:"))
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
			return
		}
		posts := make([]*record.Post, 0, len(ids))
		for _, id := range ids {
			if p, ok := m.posts[id]; ok {
				posts = append(posts, p)
			}
		}
		shuffle(posts)
		writeJSON(w, http.StatusOK, record.PostPage{Posts: posts})
		return
	}

	ascending := false
	var required []string
	for _, term := range terms {
		if order, ok := strings.CutPrefix(term, "order:"); ok {
			ascending = order == "id" || order == "id_asc"
			continue
		}
		required = append(required, term)
	}

	var ids []uint64
	for id, p := range m.posts {
		if hasAll(p.Tags.All(), required) {
			ids = append(ids, id)
		}
	}

	page, status, msg := paginate(ids, params.Get("page"), params.Get("limit"), ascending)
	if status != http.StatusOK {
		writeJSON(w, status, errorBody(msg))
		return
	}

	posts := make([]*record.Post, len(page))
	for i, id := range page {
		posts[i] = m.posts[id]
	}
	writeJSON(w, http.StatusOK, record.PostPage{Posts: posts})
}

func (m *MockE621) handlePost(w http.ResponseWriter, rawID string) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}

	m.mu.RLock()
	post, ok := m.posts[id]
	m.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, record.PostEnvelope{Post: post})
}

func (m *MockE621) handlePools(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if raw := params.Get("search[id]"); raw != "" {
		ids, err := parseIDs(raw)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
			return
		}
		pools := make([]*record.Pool, 0, len(ids))
		for _, id := range ids {
			if p, ok := m.pools[id]; ok {
				pools = append(pools, p)
			}
		}
		shuffle(pools)
		writeJSON(w, http.StatusOK, pools)
		return
	}

	name := strings.ToLower(strings.ReplaceAll(params.Get("search[name_matches]"), "*", ""))
	var ids []uint64
	for id, p := range m.pools {
		if strings.Contains(strings.ToLower(p.Name), name) {
			ids = append(ids, id)
		}
	}

	page, status, msg := paginate(ids, params.Get("page"), params.Get("limit"), false)
	if status != http.StatusOK {
		writeJSON(w, status, errorBody(msg))
		return
	}

	pools := make([]*record.Pool, len(page))
	for i, id := range page {
		pools[i] = m.pools[id]
	}
	writeJSON(w, http.StatusOK, pools)
}

func (m *MockE621) handleTags(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	var names []string
	if raw := params.Get("search[name]"); raw != "" {
		names = strings.Split(raw, ",")
	}
	pattern := strings.ReplaceAll(params.Get("search[name_matches]"), "*", "")

	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []uint64
	for id, t := range m.tags {
		if len(names) > 0 && !slices.Contains(names, t.Name) {
			continue
		}
		if !strings.Contains(t.Name, pattern) {
			continue
		}
		ids = append(ids, id)
	}

	page, status, msg := paginate(ids, params.Get("page"), params.Get("limit"), params.Get("search[order]") == "id_asc")
	if status != http.StatusOK {
		writeJSON(w, status, errorBody(msg))
		return
	}

	if len(page) == 0 {
		writeJSON(w, http.StatusOK, map[string][]*record.Tag{"tags": {}})
		return
	}

	tags := make([]*record.Tag, len(page))
	for i, id := range page {
		tags[i] = m.tags[id]
	}
	writeJSON(w, http.StatusOK, tags)
}

// paginate applies the page and limit parameters to ids.
func paginate(ids []uint64, page, rawLimit string, ascending bool) ([]uint64, int, string) {
	limit := defaultLimit
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n < 0 {
			return nil, http.StatusUnprocessableEntity, "invalid limit"
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}

	slices.Sort(ids)

	switch {
	case strings.HasPrefix(page, "b"):
		before, err := strconv.ParseUint(page[1:], 10, 64)
		if err != nil {
			return nil, http.StatusUnprocessableEntity, "invalid page"
		}
		var out []uint64
		for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
			if ids[i] < before {
				out = append(out, ids[i])
			}
		}
		return out, http.StatusOK, ""

	case strings.HasPrefix(page, "a"):
		after, err := strconv.ParseUint(page[1:], 10, 64)
		if err != nil {
			return nil, http.StatusUnprocessableEntity, "invalid page"
		}
		var out []uint64
		for _, id := range ids {
			if id > after && len(out) < limit {
				out = append(out, id)
			}
		}
		return out, http.StatusOK, ""
	}

	number := 1
	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return nil, http.StatusUnprocessableEntity, "invalid page"
		}
		number = n
	}

	if !ascending {
		slices.Reverse(ids)
	}
	offset := min((number-1)*limit, len(ids))
	end := min(offset+limit, len(ids))
	return ids[offset:end], http.StatusOK, ""
}

func parseIDs(raw string) ([]uint64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]uint64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func hasAll(tags, required []string) bool {
	for _, tag := range required {
		if !slices.Contains(tags, tag) {
			return false
		}
	}
	return true
}

// shuffle mimics the server returning id lookups in its own order.
func shuffle[T any](items []T) {
	rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
}

func errorBody(reason string) map[string]any {
	return map[string]any{"success": false, "reason": reason}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewPost creates a safe-rated post carrying the given general tags.
func NewPost(id uint64, tags ...string) *record.Post {
	return &record.Post{
		ID:     id,
		Rating: record.RatingSafe,
		Tags:   record.Tags{General: tags},
	}
}

// NewPool creates an active series pool.
func NewPool(id uint64, name string, postIDs ...uint64) *record.Pool {
	return &record.Pool{
		ID:        id,
		Name:      name,
		IsActive:  true,
		Category:  record.PoolCategorySeries,
		PostIDs:   postIDs,
		PostCount: len(postIDs),
	}
}

// NewTag creates a tag.
func NewTag(id uint64, name string, category record.TagCategory, postCount int) *record.Tag {
	return &record.Tag{
		ID:        id,
		Name:      name,
		Category:  category,
		PostCount: postCount,
	}
}

// NewThrottledResponse creates a 503 response the way e621 answers when the
// request rate is exceeded.
func NewThrottledResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"success": false, "reason": "Rate limit exceeded"}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"success": false, "message": "Internal server error"}`,
	}
}
