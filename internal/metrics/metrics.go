// Package metrics declares the Prometheus metrics exported by the service.
// Metrics in this file register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "userauth"

// HTTPRequestsTotal counts handled requests.
// Labels:
//   - method: HTTP method
//   - route: gin route template, "unmatched" for 404s
//   - status: response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests handled.",
	},
	[]string{"method", "route", "status"},
)

var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// AuthEventsTotal counts token lifecycle operations.
// Labels:
//   - event: login, logout, refresh
//   - result: ok, or the error kind that ended the operation
var AuthEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Total number of login, logout and refresh attempts by result.",
	},
	[]string{"event", "result"},
)

// UserCacheLookupsTotal counts user cache reads.
// Label:
//   - result: hit, miss, corrupt, error
var UserCacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_cache_lookups_total",
		Help:      "Total number of user cache lookups by result.",
	},
	[]string{"result"},
)

// PostCommitHookFailuresTotal counts hooks that failed after a commit.
var PostCommitHookFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "post_commit_hook_failures_total",
		Help:      "Total number of post-commit hooks that returned an error or panicked.",
	},
)
