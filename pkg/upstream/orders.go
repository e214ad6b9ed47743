package upstream

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// orderViewResponse is the /order_view envelope.
type orderViewResponse struct {
	ResponseCode string      `json:"response_code"`
	OrderTotal   json.Number `json:"order_total"`
	Quantity     json.Number `json:"main_product_quantity"`
}

// orderResult is the outcome of one per-order detail fetch.
type orderResult struct {
	revenue  float64
	quantity int
}

// FetchOrderDetails aggregates revenue and quantity across the given
// orders. Orders are fetched in parallel batches of OrderBatchSize to
// bound upstream concurrency while overlapping latency. A failed order
// contributes zero and is logged; the aggregation continues.
func (c *Client) FetchOrderDetails(ctx context.Context, orderIDs []string) (OrderTotals, error) {
	if len(orderIDs) == 0 {
		return OrderTotals{}, nil
	}

	start := time.Now()
	var totals OrderTotals

	batchSize := c.config.OrderBatchSize
	for i := 0; i < len(orderIDs); i += batchSize {
		batch := orderIDs[i:min(i+batchSize, len(orderIDs))]

		results := make([]orderResult, len(batch))
		var wg sync.WaitGroup
		for j, orderID := range batch {
			wg.Add(1)
			go func(slot int, orderID string) {
				defer wg.Done()
				results[slot] = c.fetchOrder(ctx, orderID)
			}(j, orderID)
		}
		wg.Wait()

		for _, r := range results {
			totals.TotalRevenue += r.revenue
			totals.TotalQuantity += r.quantity
		}
	}

	c.logger.Debug().
		Int("orders", len(orderIDs)).
		Float64("revenue", totals.TotalRevenue).
		Int("quantity", totals.TotalQuantity).
		Dur("duration", time.Since(start)).
		Msg("Order details aggregated")
	return totals, nil
}

// fetchOrder fetches a single order's totals. Failures are absorbed into a
// zero contribution so one bad order cannot sink the whole aggregation.
func (c *Client) fetchOrder(ctx context.Context, orderID string) orderResult {
	var resp orderViewResponse
	if err := c.post(ctx, "/order_view", map[string]any{"order_id": []string{orderID}}, &resp); err != nil {
		c.logger.Warn().Err(err).Str("order_id", orderID).Msg("Order detail fetch failed")
		return orderResult{}
	}
	if resp.ResponseCode != responseCodeOK {
		c.logger.Warn().
			Str("order_id", orderID).
			Str("response_code", resp.ResponseCode).
			Msg("Order detail fetch rejected")
		return orderResult{}
	}

	revenue, _ := resp.OrderTotal.Float64()
	quantity, _ := resp.Quantity.Int64()
	return orderResult{revenue: revenue, quantity: int(quantity)}
}
