// Package finance computes derived financial figures from gross revenue.
// The whole chain runs at full precision; only the fields of the returned
// breakdown are rounded to cents, each exactly once.
package finance

import "math"

const (
	// DefaultCostRate is the fraction of net revenue attributed to
	// operating costs.
	DefaultCostRate = 0.10

	// DefaultRefundRate is the assumed refund fraction applied to gross
	// revenue when no product-specific rate is configured.
	DefaultRefundRate = 0.15
)

// Financials is the derived breakdown for one product's gross revenue.
type Financials struct {
	// Refunds is gross revenue times the refund rate.
	Refunds float64 `json:"refunds"`

	// Net is gross revenue less refunds.
	Net float64 `json:"netRevenue"`

	// Costs is the operating cost share of net revenue.
	Costs float64 `json:"costs"`

	// Profit is net revenue less costs.
	Profit float64 `json:"profit"`

	// Margin is profit as a percentage of net revenue, 0 when net
	// revenue is zero or negative.
	Margin float64 `json:"margin"`
}

// ComputeFinancials derives the full breakdown from gross revenue and a
// refund rate. A negative refund rate is treated as zero.
func ComputeFinancials(gross, refundRate float64) Financials {
	if refundRate < 0 {
		refundRate = 0
	}

	refunds := gross * refundRate
	net := gross - refunds
	costs := net * DefaultCostRate
	profit := net - costs

	margin := 0.0
	if net > 0 {
		margin = profit / net * 100
	}

	return Financials{
		Refunds: roundCents(refunds),
		Net:     roundCents(net),
		Costs:   roundCents(costs),
		Profit:  roundCents(profit),
		Margin:  roundCents(margin),
	}
}

// roundCents rounds half away from zero to two decimal places.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
