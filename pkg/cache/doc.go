// Package cache implements the two-tier cache for synced commerce data:
// a volatile Redis tier in front of a durable datastore tier, coordinated
// by a strict read-through/write-through policy.
//
// # Tiers
//
// The volatile tier (VolatileStore) is the primary hit path. It is cheap,
// lossy and allowed to disappear: when its connection drops every operation
// degrades to a soft miss and the coordinator falls through to the next
// tier. The persistent tier (PersistentStore) survives restarts and is the
// slow-changing backing cache; its failures are hard errors.
//
// # Read path
//
//	payload, err := coord.Get(ctx, cache.TypeCatalog, "")
//
// Get checks volatile, then persistent (backfilling volatile on a hit),
// then the upstream Source. Fresh upstream data is written to both tiers
// with per-type TTLs; the volatile TTL is always strictly shorter than the
// persistent TTL so the fast tier acts as a request-rate shock absorber
// while the durable tier absorbs upstream churn.
//
// # Invalidation
//
//	err := coord.Invalidate(ctx)
//
// Invalidate deletes matching volatile keys and marks matching persistent
// entries expired in place (history is preserved for the cleanup job).
// The next Get observes a true miss and re-pulls from upstream.
//
// # Entries
//
// Every cached value is an Entry carrying a typed payload: CatalogPayload,
// RevenuePayload or AnalyticsPayload, discriminated by EntryType. The JSON
// envelope round-trips losslessly for all three types.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - ordersync_cache_hits_total{layer} - hits by tier (redis, datastore)
//   - ordersync_cache_misses_total - full misses
//   - ordersync_cache_errors_total{operation} - store operation errors
//   - ordersync_cache_invalidations_total - invalidation sweeps
//   - ordersync_cache_backfills_total - persistent-to-volatile backfills
//   - ordersync_cache_volatile_disconnects_total - Redis connection drops
package cache
