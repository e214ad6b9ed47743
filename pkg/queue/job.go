// Package queue implements the Redis-backed background job queue. Jobs
// are grouped into category queues, claimed atomically by workers, and
// carry a progress/status record that survives until its retention TTL.
package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category identifies a job queue. Each category has a dedicated worker
// loop so a slow sync cannot starve cleanup.
type Category string

const (
	// CategorySync refreshes product data from the upstream API.
	CategorySync Category = "sync"

	// CategoryAnalytics computes the portfolio summary from stored records.
	CategoryAnalytics Category = "analytics"

	// CategoryWarm pre-populates cache keys without invalidating.
	CategoryWarm Category = "cache-warm"

	// CategoryCleanup reclaims expired and superseded cache entries.
	CategoryCleanup Category = "cleanup"
)

// Categories returns all job categories in use.
func Categories() []Category {
	return []Category{CategorySync, CategoryAnalytics, CategoryWarm, CategoryCleanup}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategorySync, CategoryAnalytics, CategoryWarm, CategoryCleanup:
		return true
	}
	return false
}

// Status is the lifecycle state of a job.
type Status string

const (
	// StatusWaiting means the job is queued and unclaimed.
	StatusWaiting Status = "waiting"

	// StatusActive means a worker has claimed the job.
	StatusActive Status = "active"

	// StatusCompleted means the job finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed means the job handler returned an error or panicked.
	StatusFailed Status = "failed"
)

// Request is the closed set of job parameter variants. Each category has
// exactly one request type.
type Request interface {
	Category() Category
}

// SyncRequest asks for a product data refresh. An empty ProductIDs list
// syncs the configured targets.
type SyncRequest struct {
	ProductIDs []string `json:"productIds,omitempty"`
}

// Category implements Request.
func (SyncRequest) Category() Category { return CategorySync }

// AnalyticsRequest asks for a portfolio summary rebuild.
type AnalyticsRequest struct{}

// Category implements Request.
func (AnalyticsRequest) Category() Category { return CategoryAnalytics }

// WarmRequest asks for cache pre-population. An empty Keys list warms the
// default key set.
type WarmRequest struct {
	Keys []string `json:"keys,omitempty"`
}

// Category implements Request.
func (WarmRequest) Category() Category { return CategoryWarm }

// CleanupScope selects what a cleanup job reclaims.
type CleanupScope string

const (
	// ScopeExpired removes entries past their expiry.
	ScopeExpired CleanupScope = "expired"

	// ScopeDuplicates removes superseded revisions.
	ScopeDuplicates CleanupScope = "duplicates"

	// ScopeAll runs both passes.
	ScopeAll CleanupScope = "all"
)

// CleanupRequest asks for cache reclamation. An empty scope means ScopeAll.
type CleanupRequest struct {
	Scope CleanupScope `json:"scope,omitempty"`
}

// Category implements Request.
func (CleanupRequest) Category() Category { return CategoryCleanup }

// Job is the stored record for one queued unit of work.
type Job struct {
	// ID is the queue-assigned job ID.
	ID string

	// Category selects the worker that handles the job.
	Category Category

	// Request carries the category-specific parameters.
	Request Request

	// Status is the current lifecycle state.
	Status Status

	// Progress is 0-100 and only moves forward.
	Progress int

	// Result holds the handler's summary once completed.
	Result json.RawMessage

	// Error holds the failure message once failed.
	Error string

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// jobEnvelope is the wire form of a Job. The request is kept as raw JSON
// and decoded by the Category discriminant.
type jobEnvelope struct {
	ID          string          `json:"id"`
	Category    Category        `json:"category"`
	Request     json.RawMessage `json:"request"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   time.Time       `json:"started_at,omitempty"`
	CompletedAt time.Time       `json:"completed_at,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (j Job) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(j.Request)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", j.Category, err)
	}
	return json.Marshal(jobEnvelope{
		ID:          j.ID,
		Category:    j.Category,
		Request:     raw,
		Status:      j.Status,
		Progress:    j.Progress,
		Result:      j.Result,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *Job) UnmarshalJSON(data []byte) error {
	var env jobEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal job: %w", err)
	}
	req, err := decodeRequest(env.Category, env.Request)
	if err != nil {
		return err
	}
	j.ID = env.ID
	j.Category = env.Category
	j.Request = req
	j.Status = env.Status
	j.Progress = env.Progress
	j.Result = env.Result
	j.Error = env.Error
	j.CreatedAt = env.CreatedAt
	j.StartedAt = env.StartedAt
	j.CompletedAt = env.CompletedAt
	return nil
}

// decodeRequest decodes raw request JSON into the concrete variant for c.
func decodeRequest(c Category, raw json.RawMessage) (Request, error) {
	switch c {
	case CategorySync:
		var r SyncRequest
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("unmarshal sync request: %w", err)
		}
		return r, nil
	case CategoryAnalytics:
		var r AnalyticsRequest
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("unmarshal analytics request: %w", err)
		}
		return r, nil
	case CategoryWarm:
		var r WarmRequest
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("unmarshal warm request: %w", err)
		}
		return r, nil
	case CategoryCleanup:
		var r CleanupRequest
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("unmarshal cleanup request: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown job category %q", c)
	}
}
