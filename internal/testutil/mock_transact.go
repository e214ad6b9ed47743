// Package testutil provides testing utilities for the sync service.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock transaction API endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockTransact is a configurable mock transaction API server for testing.
type MockTransact struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount   int
	PathCounts     map[string]int
	LastAuthHeader string
}

// NewMockTransact creates a new mock transaction API server.
func NewMockTransact() *MockTransact {
	mock := &MockTransact{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.LastAuthHeader = r.Header.Get("Authorization")
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockTransact) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTransact) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockTransact) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PathCounts = make(map[string]int)
	m.LastAuthHeader = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockTransact) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockTransact) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetCatalog configures /product_index to return the given products.
// Product values follow the API's catalog attribute shape.
func (m *MockTransact) SetCatalog(products map[string]map[string]string) {
	body, _ := json.Marshal(map[string]any{
		"response_code": "100",
		"products":      products,
	})
	m.SetResponse("/product_index", MockResponse{StatusCode: http.StatusOK, Body: string(body)})
}

// SetOrderFind configures /order_find to return the given order IDs.
func (m *MockTransact) SetOrderFind(orderIDs []string) {
	body, _ := json.Marshal(map[string]any{
		"response_code": "100",
		"total_orders":  len(orderIDs),
		"order_id":      orderIDs,
	})
	m.SetResponse("/order_find", MockResponse{StatusCode: http.StatusOK, Body: string(body)})
}

// SetOrderView configures /order_view to return the given totals for
// every order.
func (m *MockTransact) SetOrderView(orderTotal float64, quantity int) {
	body, _ := json.Marshal(map[string]any{
		"response_code":         "100",
		"order_total":           orderTotal,
		"main_product_quantity": quantity,
	})
	m.SetResponse("/order_view", MockResponse{StatusCode: http.StatusOK, Body: string(body)})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockTransact) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to one path.
func (m *MockTransact) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// defaultHandler answers unconfigured paths with an API-level error.
func (m *MockTransact) defaultHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"response_code": "400", "message": "unconfigured endpoint"}`))
}

// NewErrorResponse creates an API-level error response (HTTP 200 with a
// non-success response code).
func NewErrorResponse(code, message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"response_code": %q, "message": %q}`, code, message),
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
	}
}

// CatalogProduct builds a catalog attribute map for SetCatalog.
func CatalogProduct(name, sku, categoryID, price, cost string) map[string]string {
	return map[string]string{
		"product_name":       name,
		"product_sku":        sku,
		"category_id":        categoryID,
		"product_price":      price,
		"cost_of_goods_sold": cost,
	}
}
