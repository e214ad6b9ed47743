package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/merchstats/ordersync/pkg/logging"
)

// Source fetches fresh data from the authoritative upstream for a cache
// type. Implementations return ErrNoSource for types that are only ever
// populated by explicit Put (analytics summaries).
type Source interface {
	Fetch(ctx context.Context, t EntryType, identifier string) (Payload, error)
}

// TTLConfig holds the per-type TTL for each tier. The persistent TTL must
// exceed the volatile TTL for every type: the volatile tier is a
// request-rate shock absorber, the persistent tier is the slow-changing
// backing cache, and collapsing the stagger defeats the tiering.
type TTLConfig struct {
	Volatile   map[EntryType]time.Duration
	Persistent map[EntryType]time.Duration
}

// DefaultTTLConfig returns the production TTL stagger.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Volatile: map[EntryType]time.Duration{
			TypeCatalog:          30 * time.Minute,
			TypeOrderRevenue:     20 * time.Minute,
			TypeAnalyticsSummary: 15 * time.Minute,
		},
		Persistent: map[EntryType]time.Duration{
			TypeCatalog:          6 * time.Hour,
			TypeOrderRevenue:     4 * time.Hour,
			TypeAnalyticsSummary: 8 * time.Hour,
		},
	}
}

// Validate checks that every cache type has both TTLs configured and that
// the persistent TTL strictly exceeds the volatile TTL.
func (c TTLConfig) Validate() error {
	for _, t := range EntryTypes() {
		volatileTTL, ok := c.Volatile[t]
		if !ok || volatileTTL <= 0 {
			return fmt.Errorf("ttl config: missing volatile ttl for %q", t)
		}
		persistentTTL, ok := c.Persistent[t]
		if !ok || persistentTTL <= 0 {
			return fmt.Errorf("ttl config: missing persistent ttl for %q", t)
		}
		if persistentTTL <= volatileTTL {
			return fmt.Errorf("ttl config: persistent ttl (%s) must exceed volatile ttl (%s) for %q",
				persistentTTL, volatileTTL, t)
		}
	}
	return nil
}

// Coordinator orchestrates the tiered read-through/write-through policy
// across the volatile tier, the persistent tier, and the upstream source.
//
// Tiers are checked in strict fallthrough order, never raced; a hit at an
// earlier tier short-circuits the later ones. Volatile-tier outages degrade
// to soft misses; persistent-tier and upstream failures propagate.
type Coordinator struct {
	volatile   *VolatileStore
	persistent *PersistentStore
	source     Source
	ttl        TTLConfig
	logger     zerolog.Logger
}

// Stats aggregates both tiers for observability endpoints.
type Stats struct {
	Volatile   VolatileStats   `json:"volatile"`
	Persistent PersistentStats `json:"persistent"`
}

// NewCoordinator wires the two tiers and the upstream source together.
func NewCoordinator(volatile *VolatileStore, persistent *PersistentStore, source Source, ttl TTLConfig) (*Coordinator, error) {
	if volatile == nil {
		return nil, errors.New("volatile store is required")
	}
	if persistent == nil {
		return nil, errors.New("persistent store is required")
	}
	if source == nil {
		return nil, errors.New("upstream source is required")
	}
	if err := ttl.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		volatile:   volatile,
		persistent: persistent,
		source:     source,
		ttl:        ttl,
		logger:     logging.NewLogger("cache-coordinator"),
	}, nil
}

// Get resolves a payload through the tiers:
//
//  1. Volatile hit: returned immediately (cheapest path).
//  2. Persistent hit: backfilled into the volatile tier with the volatile
//     TTL, then returned.
//  3. Upstream fetch: on success the result is written to both tiers with
//     their staggered TTLs and returned. Fetch failures propagate; no
//     stale fallback is served. Types without an upstream source report
//     ErrCacheMiss on a double-tier miss.
func (c *Coordinator) Get(ctx context.Context, t EntryType, identifier string) (Payload, error) {
	if err := validateRequest(t, identifier); err != nil {
		return nil, err
	}
	key := BuildKey(t, identifier)

	// Tier 1: volatile. Unavailability is a soft miss.
	entry, err := c.volatile.Get(ctx, key)
	switch {
	case err == nil:
		CacheHits.WithLabelValues("redis").Inc()
		c.logger.Debug().Str("key", key).Msg("Volatile cache hit")
		return entry.Payload, nil
	case errors.Is(err, ErrCacheUnavailable):
		c.logger.Debug().Str("key", key).Msg("Volatile tier unavailable, falling through")
	case errors.Is(err, ErrCacheMiss):
		// fall through
	default:
		// Volatile failures are never hard failures.
		c.logger.Warn().Err(err).Str("key", key).Msg("Volatile get failed, treating as miss")
	}

	// Tier 2: persistent. Failures here are hard errors.
	entry, err = c.persistent.Get(ctx, key)
	if err == nil {
		CacheHits.WithLabelValues("datastore").Inc()
		c.backfill(ctx, entry)
		return entry.Payload, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return nil, fmt.Errorf("persistent cache: %w", err)
	}

	// Tier 3: upstream.
	payload, err := c.source.Fetch(ctx, t, identifier)
	if err != nil {
		if errors.Is(err, ErrNoSource) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("upstream fetch for %s: %w", key, err)
	}
	CacheMisses.Inc()

	c.logger.Info().
		Str("key", key).
		Str("type", string(t)).
		Msg("Cache miss, fetched from upstream")

	if err := c.writeBoth(ctx, t, identifier, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Put writes a payload into both tiers directly, bypassing upstream. Used
// after computing derived data (analytics summaries).
func (c *Coordinator) Put(ctx context.Context, t EntryType, identifier string, payload Payload) error {
	if err := validateRequest(t, identifier); err != nil {
		return err
	}
	if payload == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidRequest)
	}
	if payload.EntryType() != t {
		return fmt.Errorf("%w: payload type %q does not match %q",
			ErrInvalidRequest, payload.EntryType(), t)
	}
	return c.writeBoth(ctx, t, identifier, payload)
}

// Invalidate deletes all matching volatile keys and marks all matching
// persistent entries expired. With no patterns given, every cache type is
// invalidated. Guarantees the next Get observes a true miss.
func (c *Coordinator) Invalidate(ctx context.Context, patterns ...string) error {
	if len(patterns) == 0 {
		patterns = AllPatterns()
	}
	CacheInvalidations.Inc()

	for _, pattern := range patterns {
		deleted, err := c.volatile.DeleteMatching(ctx, pattern)
		if err != nil {
			// Volatile outage: the persistent expiry below still forces the
			// next read through to upstream.
			c.logger.Warn().Err(err).Str("pattern", pattern).
				Msg("Volatile invalidation skipped")
		}

		marked, err := c.persistent.MarkExpiredMatching(ctx, pattern)
		if err != nil {
			return fmt.Errorf("invalidate %q: %w", pattern, err)
		}

		c.logger.Info().
			Str("pattern", pattern).
			Int("volatile_deleted", deleted).
			Int("persistent_marked", marked).
			Msg("Cache invalidated")
	}
	return nil
}

// Purge physically removes expired persistent entries.
func (c *Coordinator) Purge(ctx context.Context) (int, error) {
	return c.persistent.Purge(ctx)
}

// CleanupDuplicates removes superseded persistent revisions.
func (c *Coordinator) CleanupDuplicates(ctx context.Context) (int, error) {
	return c.persistent.CleanupDuplicates(ctx)
}

// Stats reports both tiers.
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	volatileStats, err := c.volatile.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	persistentStats, err := c.persistent.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Volatile: volatileStats, Persistent: persistentStats}, nil
}

// writeBoth persists a payload to the durable tier and then the volatile
// tier. The persistent write is authoritative and its failure propagates;
// the volatile write is best-effort.
func (c *Coordinator) writeBoth(ctx context.Context, t EntryType, identifier string, payload Payload) error {
	entry, err := NewEntry(payload, identifier, c.ttl.Persistent[t], metadataFor(t, identifier, payload))
	if err != nil {
		return err
	}

	if err := c.persistent.Put(ctx, entry); err != nil {
		return fmt.Errorf("persistent cache: %w", err)
	}

	if err := c.volatile.Set(ctx, entry, c.ttl.Volatile[t]); err != nil {
		c.logger.Debug().Err(err).Str("key", entry.Key).
			Msg("Volatile write skipped")
	}
	return nil
}

// backfill writes a persistent-tier hit back into the volatile tier so the
// next read takes the cheap path.
func (c *Coordinator) backfill(ctx context.Context, entry *Entry) {
	if err := c.volatile.Set(ctx, entry, c.ttl.Volatile[entry.Type]); err != nil {
		c.logger.Debug().Err(err).Str("key", entry.Key).
			Msg("Volatile backfill skipped")
		return
	}
	CacheBackfills.Inc()
	c.logger.Debug().Str("key", entry.Key).Msg("Volatile tier backfilled")
}

// validateRequest rejects malformed input before any tier is touched.
func validateRequest(t EntryType, identifier string) error {
	if !t.Valid() {
		return fmt.Errorf("%w: unknown cache type %q", ErrInvalidRequest, t)
	}
	if t == TypeOrderRevenue && identifier == "" {
		return fmt.Errorf("%w: order-revenue requires a product identifier", ErrInvalidRequest)
	}
	return nil
}

// metadataFor derives the metadata block for a fresh entry.
func metadataFor(t EntryType, identifier string, payload Payload) Metadata {
	meta := Metadata{SubjectID: identifier, SchemaVersion: SchemaVersion}
	if p, ok := payload.(RevenuePayload); ok && t == TypeOrderRevenue {
		meta.DateRange = p.DateRange.String()
	}
	return meta
}
