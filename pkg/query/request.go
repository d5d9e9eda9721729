// Package query turns searches and id lists into e621 request URLs.
package query

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Request is one GET against an e621 endpoint.
type Request struct {
	// Endpoint is the path relative to the base URL (e.g. "/posts.json").
	Endpoint string

	// Params are the query parameters.
	Params url.Values
}

// With returns a copy of the request with one parameter set.
func (r Request) With(key, value string) Request {
	params := make(url.Values, len(r.Params)+1)
	for k, v := range r.Params {
		params[k] = append([]string(nil), v...)
	}
	params.Set(key, value)

	return Request{Endpoint: r.Endpoint, Params: params}
}

// URL resolves the request against base. Parameters are encoded sorted by key.
func (r Request) URL(base *url.URL) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimPrefix(r.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", r.Endpoint, err)
	}

	u := base.ResolveReference(ref)
	u.RawQuery = r.Params.Encode()
	return u, nil
}

// Key generates a deterministic, human readable identifier for logs.
// Format: e621:endpoint:param1=val1:param2=val2
//
// Example:
//
//	e621:posts.json:limit=320:page=b1000:tags=fox solo
func (r Request) Key() string {
	parts := []string{"e621"}

	endpoint := strings.Trim(r.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(r.Params) > 0 {
		keys := make([]string, 0, len(r.Params))
		for key := range r.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(r.Params[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}

// joinIDs renders ids as a comma separated list.
func joinIDs(ids []uint64) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", id)
	}
	return b.String()
}
