package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/merchstats/ordersync/internal/testutil"
	"github.com/merchstats/ordersync/pkg/cache"
	"github.com/merchstats/ordersync/pkg/upstream"
)

func testUpstreamClient(t *testing.T, mock *testutil.MockTransact, targets ...string) *upstream.Client {
	t.Helper()
	cfg := upstream.DefaultConfig(mock.URL(), "user", "pass")
	cfg.TargetProducts = targets
	client, err := upstream.New(cfg)
	if err != nil {
		t.Fatalf("upstream.New failed: %v", err)
	}
	return client
}

func TestUpstreamSource_Catalog(t *testing.T) {
	mock := testutil.NewMockTransact()
	defer mock.Close()
	mock.SetCatalog(map[string]map[string]string{
		"2142": testutil.CatalogProduct("Starter Kit", "SK-01", "7", "49.99", "12.50"),
	})

	source := NewUpstreamSource(testUpstreamClient(t, mock, "2142"))
	payload, err := source.Fetch(context.Background(), cache.TypeCatalog, "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	catalog, ok := payload.(cache.CatalogPayload)
	if !ok {
		t.Fatalf("payload type = %T, want CatalogPayload", payload)
	}
	if _, ok := catalog.Products["2142"]; !ok {
		t.Errorf("Products = %v, want entry for 2142", catalog.Products)
	}
}

func TestUpstreamSource_OrderRevenue(t *testing.T) {
	mock := testutil.NewMockTransact()
	defer mock.Close()
	mock.SetOrderFind([]string{"100", "101"})

	source := NewUpstreamSource(testUpstreamClient(t, mock))
	payload, err := source.Fetch(context.Background(), cache.TypeOrderRevenue, "2142")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	revenue, ok := payload.(cache.RevenuePayload)
	if !ok {
		t.Fatalf("payload type = %T, want RevenuePayload", payload)
	}
	if revenue.TotalOrders != 2 || len(revenue.OrderIDs) != 2 {
		t.Errorf("revenue = %+v, want 2 orders", revenue)
	}
	if revenue.DateRange.Start == "" || revenue.DateRange.End == "" {
		t.Error("revenue should carry the search window")
	}
}

func TestUpstreamSource_AnalyticsHasNoSource(t *testing.T) {
	mock := testutil.NewMockTransact()
	defer mock.Close()

	source := NewUpstreamSource(testUpstreamClient(t, mock))
	_, err := source.Fetch(context.Background(), cache.TypeAnalyticsSummary, "")
	if !errors.Is(err, cache.ErrNoSource) {
		t.Errorf("Fetch = %v, want ErrNoSource", err)
	}
	if mock.GetRequestCount() != 0 {
		t.Error("no upstream request should be made for analytics summaries")
	}
}

func TestUpstreamSource_UnknownType(t *testing.T) {
	mock := testutil.NewMockTransact()
	defer mock.Close()

	source := NewUpstreamSource(testUpstreamClient(t, mock))
	_, err := source.Fetch(context.Background(), cache.EntryType("bogus"), "")
	if !errors.Is(err, cache.ErrInvalidRequest) {
		t.Errorf("Fetch = %v, want ErrInvalidRequest", err)
	}
}
