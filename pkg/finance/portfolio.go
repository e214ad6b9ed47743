package finance

import (
	"time"

	"github.com/merchstats/ordersync/pkg/product"
)

// Portfolio is the aggregate financial summary across all active
// products. Totals are sums of the per-product stored figures, so the
// summary is consistent with what each product reports individually.
type Portfolio struct {
	TotalProducts int     `json:"totalProducts"`
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalRefunds  float64 `json:"totalRefunds"`
	TotalNet      float64 `json:"totalNetRevenue"`
	TotalCosts    float64 `json:"totalCosts"`
	TotalProfit   float64 `json:"totalProfit"`

	// AverageRevenue is gross revenue per product.
	AverageRevenue float64 `json:"averageRevenue"`

	// AverageOrderValue is gross revenue per order across the portfolio.
	AverageOrderValue float64 `json:"averageOrderValue"`

	TotalOrders int       `json:"totalOrders"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// BuildPortfolio aggregates the stored records into a portfolio summary.
func BuildPortfolio(records []product.Record) Portfolio {
	p := Portfolio{
		TotalProducts: len(records),
		GeneratedAt:   time.Now().UTC(),
	}

	for _, r := range records {
		p.TotalRevenue += r.GrossRevenue
		p.TotalRefunds += r.Refunds
		p.TotalNet += r.NetRevenue
		p.TotalCosts += r.Costs
		p.TotalProfit += r.Profit
		p.TotalOrders += r.TotalOrders
	}

	p.TotalRevenue = roundCents(p.TotalRevenue)
	p.TotalRefunds = roundCents(p.TotalRefunds)
	p.TotalNet = roundCents(p.TotalNet)
	p.TotalCosts = roundCents(p.TotalCosts)
	p.TotalProfit = roundCents(p.TotalProfit)

	if p.TotalProducts > 0 {
		p.AverageRevenue = roundCents(p.TotalRevenue / float64(p.TotalProducts))
	}
	if p.TotalOrders > 0 {
		p.AverageOrderValue = roundCents(p.TotalRevenue / float64(p.TotalOrders))
	}
	return p
}
