package finance

import (
	"testing"

	"github.com/merchstats/ordersync/pkg/product"
)

func TestBuildPortfolio(t *testing.T) {
	records := []product.Record{
		{
			ID:           "1",
			GrossRevenue: 1000,
			Refunds:      150,
			NetRevenue:   850,
			Costs:        85,
			Profit:       765,
			TotalOrders:  10,
		},
		{
			ID:           "2",
			GrossRevenue: 500,
			Refunds:      75,
			NetRevenue:   425,
			Costs:        42.5,
			Profit:       382.5,
			TotalOrders:  5,
		},
	}

	p := BuildPortfolio(records)

	if p.TotalProducts != 2 {
		t.Errorf("TotalProducts = %d, want 2", p.TotalProducts)
	}
	if p.TotalRevenue != 1500 {
		t.Errorf("TotalRevenue = %v, want 1500", p.TotalRevenue)
	}
	if p.TotalRefunds != 225 {
		t.Errorf("TotalRefunds = %v, want 225", p.TotalRefunds)
	}
	if p.TotalNet != 1275 {
		t.Errorf("TotalNet = %v, want 1275", p.TotalNet)
	}
	if p.TotalCosts != 127.5 {
		t.Errorf("TotalCosts = %v, want 127.5", p.TotalCosts)
	}
	if p.TotalProfit != 1147.5 {
		t.Errorf("TotalProfit = %v, want 1147.5", p.TotalProfit)
	}
	if p.TotalOrders != 15 {
		t.Errorf("TotalOrders = %d, want 15", p.TotalOrders)
	}
	if p.AverageRevenue != 750 {
		t.Errorf("AverageRevenue = %v, want 750", p.AverageRevenue)
	}
	if p.AverageOrderValue != 100 {
		t.Errorf("AverageOrderValue = %v, want 100", p.AverageOrderValue)
	}
	if p.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be set")
	}
}

func TestBuildPortfolio_Empty(t *testing.T) {
	p := BuildPortfolio(nil)

	if p.TotalProducts != 0 || p.TotalRevenue != 0 {
		t.Errorf("empty portfolio should be zero, got %+v", p)
	}
	if p.AverageRevenue != 0 || p.AverageOrderValue != 0 {
		t.Error("averages over zero products or orders must be 0, not NaN")
	}
	if p.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be set even for an empty portfolio")
	}
}

func TestBuildPortfolio_NoOrders(t *testing.T) {
	p := BuildPortfolio([]product.Record{{ID: "1", GrossRevenue: 0, TotalOrders: 0}})

	if p.AverageOrderValue != 0 {
		t.Errorf("AverageOrderValue = %v, want 0 with no orders", p.AverageOrderValue)
	}
}
