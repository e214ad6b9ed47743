package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	"github.com/rs/zerolog"

	"github.com/merchstats/ordersync/pkg/logging"
)

// ErrNotFound is returned when a product record does not exist.
var ErrNotFound = errors.New("product not found")

// storePrefix is the datastore namespace holding product records.
const storePrefix = "/products"

// Store persists product records in a datastore, one record per product
// at /products/<id>.
type Store struct {
	ds     datastore.Batching
	logger zerolog.Logger
}

// NewStore creates a product store on top of an existing datastore.
func NewStore(ds datastore.Batching) *Store {
	if ds == nil {
		panic("datastore cannot be nil")
	}
	return &Store{
		ds:     ds,
		logger: logging.NewLogger("product-store"),
	}
}

func recordKey(id string) datastore.Key {
	return datastore.NewKey(storePrefix).ChildString(id)
}

// Upsert replaces the stored record for rec.ID wholesale.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("product id is required")
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal product record: %w", err)
	}
	if err := s.ds.Put(ctx, recordKey(rec.ID), data); err != nil {
		return fmt.Errorf("datastore put: %w", err)
	}

	s.logger.Debug().
		Str("product_id", rec.ID).
		Float64("gross_revenue", rec.GrossRevenue).
		Msg("Product record upserted")
	return nil
}

// Get returns the record for the given product ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	data, err := s.ds.Get(ctx, recordKey(id))
	if errors.Is(err, datastore.ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("datastore get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal product record: %w", err)
	}
	return rec, nil
}

// List returns all active records sorted by gross revenue, highest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := s.each(ctx, func(rec Record) {
		if rec.Active {
			records = append(records, rec)
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].GrossRevenue > records[j].GrossRevenue
	})
	return records, nil
}

// Find returns the records for the given IDs, skipping IDs with no record.
// The result preserves the requested order.
func (s *Store) Find(ctx context.Context, ids []string) ([]Record, error) {
	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Deactivate marks the record inactive so listings no longer include it.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.Active = false
	rec.LastUpdated = time.Now().UTC()
	return s.Upsert(ctx, rec)
}

// each walks every decodable record in the store.
func (s *Store) each(ctx context.Context, fn func(Record)) error {
	res, err := s.ds.Query(ctx, dsq.Query{Prefix: storePrefix})
	if err != nil {
		return fmt.Errorf("datastore query: %w", err)
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

		var rec Record
		if err := json.Unmarshal(r.Value, &rec); err != nil {
			s.logger.Warn().Err(err).Str("key", r.Key).Msg("Skipping undecodable product record")
			continue
		}
		fn(rec)
	}
}
