package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/merchstats/ordersync/pkg/cache"
	"github.com/merchstats/ordersync/pkg/finance"
	"github.com/merchstats/ordersync/pkg/logging"
	"github.com/merchstats/ordersync/pkg/product"
	"github.com/merchstats/ordersync/pkg/queue"
	"github.com/merchstats/ordersync/pkg/upstream"
)

// Handlers holds the shared dependencies the job handlers run against.
type Handlers struct {
	coord    *cache.Coordinator
	client   *upstream.Client
	products *product.Store
	logger   zerolog.Logger
}

// NewHandlers wires the handler set.
func NewHandlers(coord *cache.Coordinator, client *upstream.Client, products *product.Store) *Handlers {
	if coord == nil || client == nil || products == nil {
		panic("handler dependencies cannot be nil")
	}
	return &Handlers{
		coord:    coord,
		client:   client,
		products: products,
		logger:   logging.NewLogger("worker"),
	}
}

// ItemError records one product that failed inside an otherwise
// successful sync.
type ItemError struct {
	ProductID string `json:"productId"`
	Message   string `json:"message"`
}

// SyncResult summarizes a sync job.
type SyncResult struct {
	Synced  int         `json:"synced"`
	Updated int         `json:"updated"`
	Errors  []ItemError `json:"errors,omitempty"`
}

// AnalyticsResult summarizes an analytics job.
type AnalyticsResult struct {
	Portfolio finance.Portfolio `json:"portfolio"`
}

// WarmResult summarizes a cache warming job.
type WarmResult struct {
	Warmed int      `json:"warmed"`
	Failed []string `json:"failed,omitempty"`
}

// CleanupResult summarizes a cleanup job.
type CleanupResult struct {
	ExpiredRemoved    int `json:"expiredRemoved"`
	DuplicatesRemoved int `json:"duplicatesRemoved"`
}

// Sync refreshes the targeted products end to end: invalidate the data
// caches, re-fetch the catalog, then per product resolve order revenue,
// aggregate order details, derive financials, and replace the stored
// record. One product failing does not abort the rest; failures are
// reported per item and the job still completes.
func (h *Handlers) Sync(ctx context.Context, req queue.SyncRequest, progress func(int)) (SyncResult, error) {
	start := time.Now()
	ids := req.ProductIDs
	if len(ids) == 0 {
		ids = h.client.Targets()
	}
	if len(ids) == 0 {
		return SyncResult{}, errors.New("no products to sync")
	}

	// Stale catalog and revenue entries would defeat the refresh.
	err := h.coord.Invalidate(ctx,
		cache.Pattern(cache.TypeCatalog),
		cache.Pattern(cache.TypeOrderRevenue))
	if err != nil {
		return SyncResult{}, fmt.Errorf("invalidate before sync: %w", err)
	}
	progress(10)

	payload, err := h.coord.Get(ctx, cache.TypeCatalog, "")
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch catalog: %w", err)
	}
	catalog, ok := payload.(cache.CatalogPayload)
	if !ok {
		return SyncResult{}, fmt.Errorf("unexpected catalog payload %T", payload)
	}
	progress(20)

	result := SyncResult{Synced: len(ids)}
	for i, id := range ids {
		if err := h.syncProduct(ctx, id, catalog); err != nil {
			h.logger.Warn().Err(err).Str("product_id", id).Msg("Product sync failed")
			result.Errors = append(result.Errors, ItemError{ProductID: id, Message: err.Error()})
		} else {
			result.Updated++
		}
		progress(20 + (i+1)*80/len(ids))
	}

	h.logger.Info().
		Int("synced", result.Synced).
		Int("updated", result.Updated).
		Int("errors", len(result.Errors)).
		Dur("duration", time.Since(start)).
		Msg("Sync finished")
	return result, nil
}

// syncProduct refreshes one product's stored record.
func (h *Handlers) syncProduct(ctx context.Context, id string, catalog cache.CatalogPayload) error {
	attrs, ok := catalog.Products[id]
	if !ok {
		return fmt.Errorf("product %s missing from catalog", id)
	}

	payload, err := h.coord.Get(ctx, cache.TypeOrderRevenue, id)
	if err != nil {
		return fmt.Errorf("order revenue: %w", err)
	}
	revenue, ok := payload.(cache.RevenuePayload)
	if !ok {
		return fmt.Errorf("unexpected revenue payload %T", payload)
	}

	totals, err := h.client.FetchOrderDetails(ctx, revenue.OrderIDs)
	if err != nil {
		return fmt.Errorf("order details: %w", err)
	}

	fin := finance.ComputeFinancials(totals.TotalRevenue, finance.DefaultRefundRate)

	rec := product.Record{
		ID:            id,
		Name:          attrs.Name,
		SKU:           attrs.SKU,
		CategoryID:    attrs.CategoryID,
		Price:         attrs.PriceValue(),
		Cost:          attrs.CostValue(),
		GrossRevenue:  totals.TotalRevenue,
		TotalOrders:   revenue.TotalOrders,
		TotalQuantity: totals.TotalQuantity,
		RefundRate:    finance.DefaultRefundRate,
		Refunds:       fin.Refunds,
		NetRevenue:    fin.Net,
		Costs:         fin.Costs,
		Profit:        fin.Profit,
		Margin:        fin.Margin,
		Active:        true,
		LastUpdated:   time.Now().UTC(),
	}
	if revenue.TotalOrders > 0 {
		rec.AverageOrderValue = totals.TotalRevenue / float64(revenue.TotalOrders)
	}

	if err := h.products.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

// Analytics rebuilds the portfolio summary from the stored records and
// caches it. The summary is only ever produced here; reads that miss both
// cache tiers report a miss rather than computing on demand.
func (h *Handlers) Analytics(ctx context.Context, _ queue.AnalyticsRequest, progress func(int)) (AnalyticsResult, error) {
	records, err := h.products.List(ctx)
	if err != nil {
		return AnalyticsResult{}, fmt.Errorf("list products: %w", err)
	}
	progress(40)

	portfolio := finance.BuildPortfolio(records)
	if err := h.coord.Put(ctx, cache.TypeAnalyticsSummary, "", cache.AnalyticsPayload{Portfolio: portfolio}); err != nil {
		return AnalyticsResult{}, fmt.Errorf("cache summary: %w", err)
	}

	h.logger.Info().
		Int("products", portfolio.TotalProducts).
		Float64("total_revenue", portfolio.TotalRevenue).
		Msg("Analytics summary rebuilt")
	return AnalyticsResult{Portfolio: portfolio}, nil
}

// Warm pre-populates cache keys without invalidating anything first; keys
// that are already cached are left untouched. With no keys given it warms
// the catalog and every target product's revenue entry.
func (h *Handlers) Warm(ctx context.Context, req queue.WarmRequest, progress func(int)) (WarmResult, error) {
	keys := req.Keys
	if len(keys) == 0 {
		keys = append(keys, cache.BuildKey(cache.TypeCatalog, ""))
		for _, id := range h.client.Targets() {
			keys = append(keys, cache.BuildKey(cache.TypeOrderRevenue, id))
		}
	}

	var result WarmResult
	for i, key := range keys {
		if err := h.warmKey(ctx, key); err != nil {
			h.logger.Warn().Err(err).Str("key", key).Msg("Cache warm failed")
			result.Failed = append(result.Failed, key)
		} else {
			result.Warmed++
		}
		progress((i + 1) * 100 / len(keys))
	}

	h.logger.Info().
		Int("warmed", result.Warmed).
		Int("failed", len(result.Failed)).
		Msg("Cache warming finished")
	return result, nil
}

func (h *Handlers) warmKey(ctx context.Context, key string) error {
	t, identifier, err := cache.ParseKey(key)
	if err != nil {
		return err
	}
	_, err = h.coord.Get(ctx, t, identifier)
	if errors.Is(err, cache.ErrCacheMiss) {
		// Types with no upstream source cannot be warmed; not a failure.
		return nil
	}
	return err
}

// Cleanup reclaims persistent-tier storage: expired entries, superseded
// duplicate revisions, or both.
func (h *Handlers) Cleanup(ctx context.Context, req queue.CleanupRequest, progress func(int)) (CleanupResult, error) {
	scope := req.Scope
	if scope == "" {
		scope = queue.ScopeAll
	}

	var result CleanupResult
	if scope == queue.ScopeExpired || scope == queue.ScopeAll {
		removed, err := h.coord.Purge(ctx)
		if err != nil {
			return result, fmt.Errorf("purge expired: %w", err)
		}
		result.ExpiredRemoved = removed
	}
	progress(50)

	if scope == queue.ScopeDuplicates || scope == queue.ScopeAll {
		removed, err := h.coord.CleanupDuplicates(ctx)
		if err != nil {
			return result, fmt.Errorf("cleanup duplicates: %w", err)
		}
		result.DuplicatesRemoved = removed
	}

	h.logger.Info().
		Int("expired_removed", result.ExpiredRemoved).
		Int("duplicates_removed", result.DuplicatesRemoved).
		Msg("Cache cleanup finished")
	return result, nil
}
