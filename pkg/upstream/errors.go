package upstream

import (
	"errors"
	"fmt"
)

// ErrMissingProductID is returned when a per-product call lacks its
// identifier. Rejected before any request is made.
var ErrMissingProductID = errors.New("product id is required")

// ErrorClass classifies upstream failures for observability.
type ErrorClass string

const (
	// ClassNetwork covers transport failures and timeouts.
	ClassNetwork ErrorClass = "network"

	// ClassHTTP covers non-2xx HTTP responses.
	ClassHTTP ErrorClass = "http"

	// ClassProtocol covers well-formed responses carrying an API error
	// code (response_code other than "100").
	ClassProtocol ErrorClass = "protocol"
)

// APIError is a failure talking to the transaction API. Calls are not
// retried automatically; the error surfaces to the job or request that
// triggered the call.
type APIError struct {
	Endpoint     string
	StatusCode   int
	ResponseCode string
	Class        ErrorClass
	Message      string
	Err          error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("upstream %s error on %s", e.Class, e.Endpoint)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.ResponseCode != "" {
		msg += fmt.Sprintf(" (response_code %s)", e.ResponseCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}
