package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by tier (redis, datastore).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordersync_cache_hits_total",
			Help: "Total number of cache hits by tier",
		},
		[]string{"layer"}, // "redis", "datastore"
	)

	// CacheMisses tracks reads that missed every tier.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ordersync_cache_misses_total",
			Help: "Total number of cache misses across all tiers",
		},
	)

	// CacheErrors tracks cache operation errors by operation.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordersync_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "invalidate", "purge"
	)

	// CacheInvalidations tracks invalidation sweeps.
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ordersync_cache_invalidations_total",
			Help: "Total number of cache invalidation sweeps",
		},
	)

	// CacheBackfills tracks persistent-tier hits written back into the
	// volatile tier.
	CacheBackfills = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ordersync_cache_backfills_total",
			Help: "Total number of persistent-to-volatile cache backfills",
		},
	)

	// VolatileDisconnects tracks transitions of the volatile tier into the
	// disconnected state.
	VolatileDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ordersync_cache_volatile_disconnects_total",
			Help: "Total number of volatile tier disconnect transitions",
		},
	)
)
