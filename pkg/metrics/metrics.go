// Package metrics provides the centralized Prometheus metrics registry.
// All metrics are defined in their respective packages (cache, upstream,
// queue) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - ordersync_cache_hits_total{layer} (Counter): Cache hits by tier (redis, datastore)
//   - ordersync_cache_misses_total (Counter): Full cache misses resolved upstream
//   - ordersync_cache_errors_total{operation} (Counter): Cache operation errors
//   - ordersync_cache_invalidations_total (Counter): Invalidation sweeps
//   - ordersync_cache_backfills_total (Counter): Persistent hits copied back to the volatile tier
//   - ordersync_cache_volatile_disconnects_total (Counter): Volatile tier outage transitions
//
// Upstream Metrics (pkg/upstream):
//   - ordersync_upstream_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - ordersync_upstream_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ordersync_upstream_errors_total{class} (Counter): Errors by class (network, http, protocol)
//
// Job Queue Metrics (pkg/queue):
//   - ordersync_jobs_enqueued_total{category} (Counter): Jobs enqueued by category
//   - ordersync_jobs_completed_total{category, outcome} (Counter): Finished jobs by outcome
//   - ordersync_job_duration_seconds{category} (Histogram): Claim-to-completion duration
//   - ordersync_jobs_waiting{category} (Gauge): Current queue depth
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ordersync_cache_hits_total[5m])) /
//   (sum(rate(ordersync_cache_hits_total[5m])) + sum(rate(ordersync_cache_misses_total[5m])))
//
//   # Job Failure Rate
//   rate(ordersync_jobs_completed_total{outcome="failed"}[15m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(ordersync_upstream_request_duration_seconds_bucket[5m]))
//
//   # Queue Backlog
//   sum(ordersync_jobs_waiting) > 10
