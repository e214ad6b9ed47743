package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/merchstats/ordersync/pkg/logging"
)

// ConnectionState is the explicit connectivity flag of the volatile tier.
// It is owned by the store instance so tests can inject a disconnected
// store and exercise the soft-failure path.
type ConnectionState struct {
	connected atomic.Bool
}

// Connected reports whether the tier is considered reachable.
func (s *ConnectionState) Connected() bool {
	return s.connected.Load()
}

func (s *ConnectionState) set(connected bool) (changed bool) {
	return s.connected.Swap(connected) != connected
}

// VolatileStore is the fast, ephemeral cache tier backed by Redis.
//
// The store degrades instead of failing: while disconnected, every
// operation is a no-op that reports ErrCacheUnavailable, and a transport
// error during an operation flips the state to disconnected. Ping flips it
// back once Redis answers again (go-redis reconnects underneath; the flag
// only gates the soft-miss behavior).
type VolatileStore struct {
	redis  *redis.Client
	state  ConnectionState
	logger zerolog.Logger
}

// VolatileStats describes the state of the volatile tier.
type VolatileStats struct {
	Connected  bool `json:"connected"`
	EntryCount int  `json:"entryCount"`
}

// NewVolatileStore creates the volatile tier on top of an existing Redis
// client. The store starts connected; callers that want to verify the
// connection first should Ping before use.
func NewVolatileStore(redisClient *redis.Client) *VolatileStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	s := &VolatileStore{
		redis:  redisClient,
		logger: logging.NewLogger("cache-volatile"),
	}
	s.state.set(true)
	return s
}

// Connected reports the current connection state.
func (s *VolatileStore) Connected() bool {
	return s.state.Connected()
}

// SetConnected overrides the connection state. Used by tests and by the
// daemon's health loop.
func (s *VolatileStore) SetConnected(connected bool) {
	if s.state.set(connected) && !connected {
		VolatileDisconnects.Inc()
	}
}

// Ping probes Redis and updates the connection state accordingly.
func (s *VolatileStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		s.markDisconnected("ping", err)
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if s.state.set(true) {
		s.logger.Info().Msg("Volatile tier reconnected")
	}
	return nil
}

// Get retrieves an entry by key. Returns ErrCacheMiss when absent or
// expired, ErrCacheUnavailable when the tier is unreachable.
func (s *VolatileStore) Get(ctx context.Context, key string) (*Entry, error) {
	if !s.Connected() {
		return nil, ErrCacheUnavailable
	}

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		s.markDisconnected("get", err)
		return nil, ErrCacheUnavailable
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupted entries are dropped and reported as a miss.
		CacheErrors.WithLabelValues("get").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Dropping invalid volatile entry")
		_ = s.Delete(ctx, key)
		return nil, ErrCacheMiss
	}

	if entry.IsExpired() {
		_ = s.Delete(ctx, key)
		return nil, ErrCacheMiss
	}

	return &entry, nil
}

// Set stores an entry under its key with the given tier TTL. The effective
// TTL never exceeds the entry's own expiry, so the tier can never serve a
// value past its ExpiresAt. Expired entries are silently not cached.
func (s *VolatileStore) Set(ctx context.Context, entry *Entry, ttl time.Duration) error {
	if entry == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	if !s.Connected() {
		return ErrCacheUnavailable
	}

	if remaining := entry.TTL(); remaining <= 0 {
		return nil
	} else if ttl <= 0 || ttl > remaining {
		ttl = remaining
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, entry.Key, data, ttl).Err(); err != nil {
		s.markDisconnected("set", err)
		return ErrCacheUnavailable
	}

	s.logger.Debug().
		Str("key", entry.Key).
		Dur("ttl", ttl).
		Msg("Volatile entry cached")
	return nil
}

// Delete removes an entry. A no-op while disconnected.
func (s *VolatileStore) Delete(ctx context.Context, key string) error {
	if !s.Connected() {
		return ErrCacheUnavailable
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.markDisconnected("delete", err)
		return ErrCacheUnavailable
	}
	return nil
}

// DeleteMatching removes every key matching the glob pattern and returns
// the number deleted. Returns 0 while disconnected.
func (s *VolatileStore) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	if !s.Connected() {
		return 0, ErrCacheUnavailable
	}

	deleted := 0
	iter := s.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			s.markDisconnected("delete", err)
			return deleted, ErrCacheUnavailable
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		s.markDisconnected("scan", err)
		return deleted, ErrCacheUnavailable
	}

	if deleted > 0 {
		s.logger.Debug().
			Str("pattern", pattern).
			Int("deleted", deleted).
			Msg("Volatile keys invalidated")
	}
	return deleted, nil
}

// Stats reports the connection state and the number of cache keys present.
func (s *VolatileStore) Stats(ctx context.Context) (VolatileStats, error) {
	stats := VolatileStats{Connected: s.Connected()}
	if !stats.Connected {
		return stats, nil
	}

	iter := s.redis.Scan(ctx, 0, keyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		stats.EntryCount++
	}
	if err := iter.Err(); err != nil {
		s.markDisconnected("scan", err)
		stats.Connected = false
		return stats, nil
	}
	return stats, nil
}

func (s *VolatileStore) markDisconnected(op string, err error) {
	CacheErrors.WithLabelValues(op).Inc()
	if s.state.set(false) {
		VolatileDisconnects.Inc()
		s.logger.Warn().Err(err).Str("operation", op).
			Msg("Volatile tier unreachable, degrading to soft misses")
	}
}
