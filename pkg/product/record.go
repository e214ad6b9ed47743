// Package product stores the synced per-product records. A record is the
// merge of catalog attributes, order aggregates, and the derived financial
// breakdown; sync replaces records wholesale rather than patching fields.
package product

import "time"

// Record is one product's synced state.
type Record struct {
	// ID is the upstream product ID.
	ID string `json:"id"`

	// Catalog attributes.
	Name       string  `json:"name"`
	SKU        string  `json:"sku"`
	CategoryID string  `json:"categoryId"`
	Price      float64 `json:"price"`
	Cost       float64 `json:"cost"`

	// Order aggregates for the synced window.
	GrossRevenue      float64 `json:"grossRevenue"`
	TotalOrders       int     `json:"totalOrders"`
	TotalQuantity     int     `json:"totalQuantity"`
	AverageOrderValue float64 `json:"averageOrderValue"`

	// Financial breakdown derived from gross revenue.
	RefundRate float64 `json:"refundRate"`
	Refunds    float64 `json:"refunds"`
	NetRevenue float64 `json:"netRevenue"`
	Costs      float64 `json:"costs"`
	Profit     float64 `json:"profit"`
	Margin     float64 `json:"margin"`

	// Active marks the record visible to listings. Products dropped from
	// the sync targets go inactive instead of being deleted.
	Active bool `json:"active"`

	// LastUpdated is when the record was last synced.
	LastUpdated time.Time `json:"lastUpdated"`
}
