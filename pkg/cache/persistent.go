package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	"github.com/rs/zerolog"

	"github.com/merchstats/ordersync/pkg/logging"
)

// persistPrefix is the datastore namespace holding cache entries.
const persistPrefix = "/cache"

// PersistentStore is the durable cache tier on top of a datastore. Entries
// survive process restarts.
//
// Each write lands at a revisioned key (cache key + creation timestamp), so
// a refresh supersedes rather than merges: readers always pick the newest
// revision, superseded revisions linger until the cleanup job removes them.
// Invalidation marks entries expired in place instead of deleting them,
// which preserves history for auditing; the store self-expires by treating
// any past-expiry entry as absent on read.
type PersistentStore struct {
	ds     datastore.Batching
	logger zerolog.Logger
}

// PersistentStats describes the contents of the persistent tier.
type PersistentStats struct {
	EntryCount   int               `json:"entryCount"`
	ExpiredCount int               `json:"expiredCount"`
	ByType       map[EntryType]int `json:"byType"`
}

// NewPersistentStore creates the persistent tier on top of an existing
// datastore.
func NewPersistentStore(ds datastore.Batching) *PersistentStore {
	if ds == nil {
		panic("datastore cannot be nil")
	}
	return &PersistentStore{
		ds:     ds,
		logger: logging.NewLogger("cache-persistent"),
	}
}

// revisionKey places an entry under /cache/<key>/<created-at-nanos>.
func revisionKey(e *Entry) datastore.Key {
	return datastore.NewKey(persistPrefix).
		ChildString(e.Key).
		ChildString(strconv.FormatInt(e.CreatedAt.UnixNano(), 10))
}

// Put stores a new revision of the entry. Previous revisions for the same
// key are superseded, not overwritten.
func (s *PersistentStore) Put(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.ds.Put(ctx, revisionKey(entry), data); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("datastore put: %w", err)
	}

	s.logger.Debug().
		Str("key", entry.Key).
		Time("expires_at", entry.ExpiresAt).
		Msg("Persistent entry written")
	return nil
}

// Get returns the newest non-expired revision for the key, or ErrCacheMiss.
// Expired revisions are treated as absent even before a purge removes them.
func (s *PersistentStore) Get(ctx context.Context, key string) (*Entry, error) {
	var newest *Entry
	prefix := datastore.NewKey(persistPrefix).ChildString(key).String()
	err := s.each(ctx, prefix, func(_ datastore.Key, entry *Entry) error {
		if newest == nil || entry.CreatedAt.After(newest.CreatedAt) {
			newest = entry
		}
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("datastore query: %w", err)
	}
	if newest == nil || newest.IsExpired() {
		return nil, ErrCacheMiss
	}
	return newest, nil
}

// Delete physically removes every revision of the key.
func (s *PersistentStore) Delete(ctx context.Context, key string) error {
	prefix := datastore.NewKey(persistPrefix).ChildString(key).String()
	err := s.each(ctx, prefix, func(dsKey datastore.Key, _ *Entry) error {
		return s.ds.Delete(ctx, dsKey)
	})
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("datastore delete: %w", err)
	}
	return nil
}

// MarkExpiredMatching sets ExpiresAt to now for every non-expired entry
// whose cache key matches the pattern, so the next read observes a true
// miss. Entries are kept in place for history; a later purge reclaims them.
// Returns the number of entries marked.
func (s *PersistentStore) MarkExpiredMatching(ctx context.Context, pattern string) (int, error) {
	now := time.Now().UTC()
	marked := 0
	err := s.each(ctx, persistPrefix, func(dsKey datastore.Key, entry *Entry) error {
		if !MatchKey(pattern, entry.Key) || entry.IsExpired() {
			return nil
		}
		entry.ExpiresAt = now
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal cache entry: %w", err)
		}
		if err := s.ds.Put(ctx, dsKey, data); err != nil {
			return err
		}
		marked++
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return marked, fmt.Errorf("mark expired: %w", err)
	}
	return marked, nil
}

// Purge physically removes every expired revision and returns the count.
func (s *PersistentStore) Purge(ctx context.Context) (int, error) {
	removed := 0
	err := s.each(ctx, persistPrefix, func(dsKey datastore.Key, entry *Entry) error {
		if !entry.IsExpired() {
			return nil
		}
		if err := s.ds.Delete(ctx, dsKey); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("purge").Inc()
		return removed, fmt.Errorf("purge expired: %w", err)
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Expired persistent entries purged")
	}
	return removed, nil
}

// CleanupDuplicates removes superseded revisions, keeping only the most
// recently created revision per (key, type). Returns the number removed.
func (s *PersistentStore) CleanupDuplicates(ctx context.Context) (int, error) {
	type revision struct {
		dsKey     datastore.Key
		createdAt time.Time
	}
	groups := make(map[string][]revision)
	err := s.each(ctx, persistPrefix, func(dsKey datastore.Key, entry *Entry) error {
		groupKey := entry.Key + "|" + string(entry.Type)
		groups[groupKey] = append(groups[groupKey], revision{dsKey, entry.CreatedAt})
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("purge").Inc()
		return 0, fmt.Errorf("scan duplicates: %w", err)
	}

	removed := 0
	for _, revs := range groups {
		if len(revs) < 2 {
			continue
		}
		newest := 0
		for i := range revs {
			if revs[i].createdAt.After(revs[newest].createdAt) {
				newest = i
			}
		}
		for i := range revs {
			if i == newest {
				continue
			}
			if err := s.ds.Delete(ctx, revs[i].dsKey); err != nil {
				CacheErrors.WithLabelValues("purge").Inc()
				return removed, fmt.Errorf("delete duplicate: %w", err)
			}
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Duplicate persistent entries removed")
	}
	return removed, nil
}

// Stats reports entry counts, expired counts, and a per-type breakdown.
func (s *PersistentStore) Stats(ctx context.Context) (PersistentStats, error) {
	stats := PersistentStats{ByType: make(map[EntryType]int)}
	err := s.each(ctx, persistPrefix, func(_ datastore.Key, entry *Entry) error {
		stats.EntryCount++
		stats.ByType[entry.Type]++
		if entry.IsExpired() {
			stats.ExpiredCount++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("datastore query: %w", err)
	}
	return stats, nil
}

// each walks every decodable entry under the prefix. Undecodable values are
// skipped with a warning so one corrupt record cannot wedge the tier.
func (s *PersistentStore) each(ctx context.Context, prefix string, fn func(datastore.Key, *Entry) error) error {
	res, err := s.ds.Query(ctx, dsq.Query{Prefix: prefix})
	if err != nil {
		return err
	}
	defer res.Close()

	for {
		r, ok := res.NextSync()
		if !ok {
			return nil
		}
		if r.Error != nil {
			return r.Error
		}

		var entry Entry
		if err := json.Unmarshal(r.Value, &entry); err != nil {
			s.logger.Warn().Err(err).Str("key", r.Key).Msg("Skipping undecodable persistent entry")
			continue
		}
		if err := fn(datastore.NewKey(r.Key), &entry); err != nil {
			return err
		}
	}
}
