package upstream

import (
	"strconv"
	"time"
)

// ProductAttributes is the raw catalog record for one product as returned
// by the transaction API. Numeric fields arrive as strings and are parsed
// on demand.
type ProductAttributes struct {
	Name       string `json:"product_name"`
	SKU        string `json:"product_sku"`
	CategoryID string `json:"category_id"`
	Price      string `json:"product_price"`
	Cost       string `json:"cost_of_goods_sold"`
}

// PriceValue parses the price, 0 when absent or malformed.
func (a ProductAttributes) PriceValue() float64 {
	return parseFloat(a.Price)
}

// CostValue parses the cost of goods sold, 0 when absent or malformed.
func (a ProductAttributes) CostValue() float64 {
	return parseFloat(a.Cost)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// dateFormat is the MM/DD/YYYY layout the transaction API expects.
const dateFormat = "01/02/2006"

// DateRange is an inclusive date window in the API's MM/DD/YYYY format.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// LastNDays returns the date range covering the last n days up to today.
func LastNDays(n int) DateRange {
	end := time.Now()
	start := end.AddDate(0, 0, -n)
	return DateRange{
		Start: start.Format(dateFormat),
		End:   end.Format(dateFormat),
	}
}

// String renders the range for logs and cache metadata.
func (r DateRange) String() string {
	return r.Start + " - " + r.End
}

// OrderSearch is the result of a per-product order search.
type OrderSearch struct {
	TotalOrders int       `json:"totalOrders"`
	OrderIDs    []string  `json:"orderIds"`
	DateRange   DateRange `json:"dateRange"`
}

// OrderTotals aggregates revenue and quantity over a set of orders.
type OrderTotals struct {
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalQuantity int     `json:"totalQuantity"`
}
