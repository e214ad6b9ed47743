// Package worker runs the background job handlers. A pool dedicates one
// claim loop per job category; handlers drive the cache coordinator, the
// upstream client, and the product store.
package worker

import (
	"context"
	"fmt"

	"github.com/merchstats/ordersync/pkg/cache"
	"github.com/merchstats/ordersync/pkg/upstream"
)

// revenueWindowDays is the order-search lookback for revenue entries.
const revenueWindowDays = 3

// UpstreamSource adapts the transaction API client to the cache
// coordinator's fetch interface. Analytics summaries have no upstream
// representation; they exist only once a job computes them.
type UpstreamSource struct {
	client *upstream.Client
}

// NewUpstreamSource creates a cache source backed by the API client.
func NewUpstreamSource(client *upstream.Client) *UpstreamSource {
	if client == nil {
		panic("upstream client cannot be nil")
	}
	return &UpstreamSource{client: client}
}

// Fetch implements cache.Source.
func (s *UpstreamSource) Fetch(ctx context.Context, t cache.EntryType, identifier string) (cache.Payload, error) {
	switch t {
	case cache.TypeCatalog:
		var ids []string
		if identifier != "" {
			ids = []string{identifier}
		}
		products, err := s.client.FetchCatalog(ctx, ids)
		if err != nil {
			return nil, err
		}
		return cache.CatalogPayload{Products: products}, nil

	case cache.TypeOrderRevenue:
		search, err := s.client.FetchOrderSearch(ctx, identifier, upstream.LastNDays(revenueWindowDays))
		if err != nil {
			return nil, err
		}
		return cache.RevenuePayload{
			TotalOrders: search.TotalOrders,
			OrderIDs:    search.OrderIDs,
			DateRange:   search.DateRange,
		}, nil

	case cache.TypeAnalyticsSummary:
		return nil, cache.ErrNoSource

	default:
		return nil, fmt.Errorf("%w: unknown cache type %q", cache.ErrInvalidRequest, t)
	}
}
