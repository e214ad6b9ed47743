// Package upstream provides the transaction API client: product catalog,
// order search, and per-order detail fetches. Pure request/response with
// no caching logic; calls carry a fixed timeout and are never retried.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/merchstats/ordersync/pkg/logging"
)

// Prometheus metrics for upstream API operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersync_upstream_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ordersync_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersync_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// responseCodeOK is the transaction API's success code.
const responseCodeOK = "100"

// Config holds the client configuration.
type Config struct {
	// BaseURL of the transaction API.
	BaseURL string

	// Basic-auth credentials.
	Username string
	Password string

	// Timeout per request. Calls that exceed it fail; there is no
	// automatic retry.
	Timeout time.Duration

	// TargetProducts is the product ID list synced by default.
	TargetProducts []string

	// OrderBatchSize bounds parallel per-order detail fetches.
	OrderBatchSize int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, username, password string) Config {
	return Config{
		BaseURL:        baseURL,
		Username:       username,
		Password:       password,
		Timeout:        30 * time.Second,
		OrderBatchSize: 5,
	}
}

// Client is the transaction API client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new transaction API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("credentials are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.OrderBatchSize <= 0 {
		cfg.OrderBatchSize = 5
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logging.NewLogger("upstream"),
	}, nil
}

// Targets returns the configured target product IDs.
func (c *Client) Targets() []string {
	return append([]string(nil), c.config.TargetProducts...)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// catalogResponse is the /product_index envelope.
type catalogResponse struct {
	ResponseCode string                       `json:"response_code"`
	Message      string                       `json:"message"`
	Products     map[string]ProductAttributes `json:"products"`
}

// FetchCatalog fetches catalog attributes for the given product IDs. An
// empty list falls back to the configured target products.
func (c *Client) FetchCatalog(ctx context.Context, ids []string) (map[string]ProductAttributes, error) {
	if len(ids) == 0 {
		ids = c.config.TargetProducts
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no product ids to fetch", ErrMissingProductID)
	}

	var resp catalogResponse
	if err := c.post(ctx, "/product_index", map[string]any{"product_id": ids}, &resp); err != nil {
		return nil, err
	}
	if resp.ResponseCode != responseCodeOK {
		upstreamErrorsTotal.WithLabelValues(string(ClassProtocol)).Inc()
		return nil, &APIError{
			Endpoint:     "/product_index",
			ResponseCode: resp.ResponseCode,
			Class:        ClassProtocol,
			Message:      resp.Message,
		}
	}

	c.logger.Debug().
		Int("products", len(resp.Products)).
		Msg("Catalog fetched")
	return resp.Products, nil
}

// orderFindResponse is the /order_find envelope. Numeric fields arrive
// inconsistently typed, hence json.Number.
type orderFindResponse struct {
	ResponseCode string      `json:"response_code"`
	TotalOrders  json.Number `json:"total_orders"`
	OrderIDs     []string    `json:"order_id"`
}

// FetchOrderSearch finds orders for one product in a date range. An API
// error code yields an empty result rather than a failure (products with
// no orders in the window report a non-success code); transport and HTTP
// failures propagate.
func (c *Client) FetchOrderSearch(ctx context.Context, productID string, dateRange DateRange) (OrderSearch, error) {
	if productID == "" {
		return OrderSearch{}, ErrMissingProductID
	}

	req := map[string]any{
		"campaign_id": "all",
		"start_date":  dateRange.Start,
		"end_date":    dateRange.End,
		"product_id":  []string{productID},
		"criteria":    "all",
		"search_type": "all",
	}

	var resp orderFindResponse
	if err := c.post(ctx, "/order_find", req, &resp); err != nil {
		return OrderSearch{}, err
	}
	if resp.ResponseCode != responseCodeOK {
		c.logger.Warn().
			Str("product_id", productID).
			Str("response_code", resp.ResponseCode).
			Msg("Order search returned no results")
		return OrderSearch{DateRange: dateRange}, nil
	}

	totalOrders, _ := resp.TotalOrders.Int64()
	result := OrderSearch{
		TotalOrders: int(totalOrders),
		OrderIDs:    resp.OrderIDs,
		DateRange:   dateRange,
	}

	c.logger.Debug().
		Str("product_id", productID).
		Int("orders", result.TotalOrders).
		Msg("Order search complete")
	return result, nil
}

// post sends a JSON request and decodes the JSON response.
func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	start := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Upstream request failed")
		return &APIError{Endpoint: endpoint, Class: ClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		upstreamErrorsTotal.WithLabelValues(string(ClassHTTP)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Upstream HTTP error")
		return &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Class:      ClassHTTP,
			Message:    resp.Status,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ClassProtocol)).Inc()
		return &APIError{Endpoint: endpoint, Class: ClassProtocol, Err: err}
	}
	return nil
}
