// Package metrics provides the Prometheus registry and exposition handler for
// the e621 client. All metrics are defined in their respective packages
// (client, ratelimit, pagination) via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the e621 client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - e621_ratelimit_acquisitions_total (Counter): Request tokens taken from buckets
//   - e621_ratelimit_wait_seconds (Histogram): Time spent waiting for a token
//   - e621_ratelimit_cancelled_total (Counter): Acquisitions abandoned before a token was available
//   - e621_throttle_rejections_total{status} (Counter): Requests the server rejected for throttling
//
// Request Metrics (pkg/client):
//   - e621_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - e621_request_duration_seconds{endpoint} (Histogram): Request duration, excluding token waits
//   - e621_errors_total{class} (Counter): Errors by class (network, client, server, rate_limit, decode)
//
// Listing Metrics (pkg/pagination):
//   - e621_listing_requests_total{driver} (Counter): Page or batch requests by driver (cursor, chunker)
//   - e621_listing_records_total{driver} (Counter): Records handed to callers
//   - e621_listing_not_found_total (Counter): Ids missing from batch responses
//
// Example Prometheus Queries:
//
//   # Effective request rate (should stay below 2/s)
//   sum(rate(e621_requests_total[1m]))
//
//   # Throttling rejections
//   rate(e621_throttle_rejections_total[5m]) > 0
//
//   # Average token wait
//   rate(e621_ratelimit_wait_seconds_sum[5m]) / rate(e621_ratelimit_wait_seconds_count[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(e621_request_duration_seconds_bucket[5m]))
//
//   # Records per request
//   rate(e621_listing_records_total[5m]) / rate(e621_listing_requests_total[5m])
