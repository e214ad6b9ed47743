package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/merchstats/ordersync/pkg/finance"
	"github.com/merchstats/ordersync/pkg/upstream"
)

// SchemaVersion is stamped into entry metadata so persisted entries can be
// migrated if the payload shape ever changes.
const SchemaVersion = "1.0"

// EntryType discriminates the payload carried by a cache entry.
type EntryType string

const (
	// TypeCatalog caches the upstream product catalog.
	TypeCatalog EntryType = "catalog"

	// TypeOrderRevenue caches per-product order-search results.
	TypeOrderRevenue EntryType = "order-revenue"

	// TypeAnalyticsSummary caches the computed portfolio summary.
	TypeAnalyticsSummary EntryType = "analytics-summary"
)

// EntryTypes returns all cache types in use.
func EntryTypes() []EntryType {
	return []EntryType{TypeCatalog, TypeOrderRevenue, TypeAnalyticsSummary}
}

// Valid reports whether t is a known cache type.
func (t EntryType) Valid() bool {
	switch t {
	case TypeCatalog, TypeOrderRevenue, TypeAnalyticsSummary:
		return true
	}
	return false
}

// Payload is the closed set of values a cache entry can carry. Adding a new
// cache type means adding a variant here and a case in decodePayload, which
// keeps payload handling exhaustive at compile time.
type Payload interface {
	EntryType() EntryType
}

// CatalogPayload is the raw product catalog keyed by product ID.
type CatalogPayload struct {
	Products map[string]upstream.ProductAttributes `json:"products"`
}

// EntryType implements Payload.
func (CatalogPayload) EntryType() EntryType { return TypeCatalog }

// RevenuePayload is a per-product order-search result.
type RevenuePayload struct {
	TotalOrders int                `json:"totalOrders"`
	OrderIDs    []string           `json:"orderIds"`
	DateRange   upstream.DateRange `json:"dateRange"`
}

// EntryType implements Payload.
func (RevenuePayload) EntryType() EntryType { return TypeOrderRevenue }

// AnalyticsPayload is the portfolio-level financial summary computed by the
// analytics job.
type AnalyticsPayload struct {
	finance.Portfolio
}

// EntryType implements Payload.
func (AnalyticsPayload) EntryType() EntryType { return TypeAnalyticsSummary }

// Metadata is the optional descriptive block persisted with an entry.
type Metadata struct {
	// SubjectID is the identifier the entry was cached for (product ID for
	// order-revenue entries, empty for singleton types).
	SubjectID string `json:"subject_id,omitempty"`

	// DateRange describes the window the payload covers.
	DateRange string `json:"date_range,omitempty"`

	// SchemaVersion is the payload schema version.
	SchemaVersion string `json:"schema_version"`
}

// Entry is one cached value. Entries are superseded wholesale on refresh,
// never merged.
type Entry struct {
	// Key is the composite cache key, unique per type+identifier.
	Key string

	// Type discriminates the payload.
	Type EntryType

	// Payload is the cached value.
	Payload Payload

	// CreatedAt is when the entry was written.
	CreatedAt time.Time

	// ExpiresAt is when the entry becomes stale. Always after CreatedAt;
	// an entry past ExpiresAt must never be returned as a hit.
	ExpiresAt time.Time

	// Metadata is the optional descriptive block.
	Metadata Metadata
}

// NewEntry builds an entry for payload with the given TTL. The identifier
// distinguishes entries of the same type (empty for singleton types).
func NewEntry(payload Payload, identifier string, ttl time.Duration, meta Metadata) (*Entry, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrInvalidEntry)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: non-positive ttl %s", ErrInvalidEntry, ttl)
	}
	if meta.SchemaVersion == "" {
		meta.SchemaVersion = SchemaVersion
	}
	now := time.Now().UTC()
	return &Entry{
		Key:       BuildKey(payload.EntryType(), identifier),
		Type:      payload.EntryType(),
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Metadata:  meta,
	}, nil
}

// IsExpired returns true if the entry has passed its expiry.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.ExpiresAt)
}

// TTL returns the time until expiry, 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Validate checks the entry invariants.
func (e *Entry) Validate() error {
	if e.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidEntry)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEntry, e.Type)
	}
	if e.Payload == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidEntry)
	}
	if e.Payload.EntryType() != e.Type {
		return fmt.Errorf("%w: payload type %q does not match entry type %q",
			ErrInvalidEntry, e.Payload.EntryType(), e.Type)
	}
	if !e.ExpiresAt.After(e.CreatedAt) {
		return fmt.Errorf("%w: expires_at not after created_at", ErrInvalidEntry)
	}
	return nil
}

// entryEnvelope is the wire form of an Entry. The payload is kept as raw
// JSON and decoded by the Type discriminant.
type entryEnvelope struct {
	Key       string          `json:"key"`
	Type      EntryType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Metadata  Metadata        `json:"metadata"`
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	return json.Marshal(entryEnvelope{
		Key:       e.Key,
		Type:      e.Type,
		Payload:   raw,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
		Metadata:  e.Metadata,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var env entryEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	payload, err := decodePayload(env.Type, env.Payload)
	if err != nil {
		return err
	}
	e.Key = env.Key
	e.Type = env.Type
	e.Payload = payload
	e.CreatedAt = env.CreatedAt
	e.ExpiresAt = env.ExpiresAt
	e.Metadata = env.Metadata
	return nil
}

// decodePayload decodes raw payload JSON into the concrete variant for t.
func decodePayload(t EntryType, raw json.RawMessage) (Payload, error) {
	switch t {
	case TypeCatalog:
		var p CatalogPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: catalog payload: %v", ErrInvalidEntry, err)
		}
		return p, nil
	case TypeOrderRevenue:
		var p RevenuePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: revenue payload: %v", ErrInvalidEntry, err)
		}
		return p, nil
	case TypeAnalyticsSummary:
		var p AnalyticsPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: analytics payload: %v", ErrInvalidEntry, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown entry type %q", ErrInvalidEntry, t)
	}
}
