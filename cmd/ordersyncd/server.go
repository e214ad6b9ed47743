package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/merchstats/ordersync/pkg/cache"
	"github.com/merchstats/ordersync/pkg/logging"
	"github.com/merchstats/ordersync/pkg/product"
	"github.com/merchstats/ordersync/pkg/queue"
)

// server is the thin HTTP surface over the coordinator, the product
// store, and the job queue. Handlers only translate between HTTP and the
// packages; no business logic lives here.
type server struct {
	coord    *cache.Coordinator
	products *product.Store
	jobs     *queue.Queue
	volatile *cache.VolatileStore
	logger   zerolog.Logger
}

func newServer(coord *cache.Coordinator, products *product.Store, jobs *queue.Queue, volatile *cache.VolatileStore) *server {
	return &server{
		coord:    coord,
		products: products,
		jobs:     jobs,
		volatile: volatile,
		logger:   logging.NewLogger("http"),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/products", s.handleProducts)
	mux.HandleFunc("GET /api/products/find", s.handleProductsFind)
	mux.HandleFunc("GET /api/analytics", s.handleAnalytics)

	mux.HandleFunc("POST /api/jobs/sync", s.handleEnqueueSync)
	mux.HandleFunc("POST /api/jobs/analytics", s.handleEnqueueAnalytics)
	mux.HandleFunc("POST /api/jobs/warm", s.handleEnqueueWarm)
	mux.HandleFunc("POST /api/jobs/cleanup", s.handleEnqueueCleanup)
	mux.HandleFunc("GET /api/jobs/stats", s.handleJobStats)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJob)

	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"redis":  s.volatile.Connected(),
	})
}

func (s *server) handleProducts(w http.ResponseWriter, r *http.Request) {
	records, err := s.products.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(records),
		"products": records,
	})
}

func (s *server) handleProductsFind(w http.ResponseWriter, r *http.Request) {
	ids := splitList(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("ids query parameter is required"))
		return
	}
	records, err := s.products.Find(r.Context(), ids)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(records),
		"products": records,
	})
}

func (s *server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	payload, err := s.coord.Get(r.Context(), cache.TypeAnalyticsSummary, "")
	if errors.Is(err, cache.ErrCacheMiss) {
		s.writeError(w, http.StatusNotFound,
			errors.New("analytics summary not available, run an analytics job first"))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *server) handleEnqueueSync(w http.ResponseWriter, r *http.Request) {
	var req queue.SyncRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.enqueue(w, r, req)
}

func (s *server) handleEnqueueAnalytics(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, queue.AnalyticsRequest{})
}

func (s *server) handleEnqueueWarm(w http.ResponseWriter, r *http.Request) {
	var req queue.WarmRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.enqueue(w, r, req)
}

func (s *server) handleEnqueueCleanup(w http.ResponseWriter, r *http.Request) {
	var req queue.CleanupRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.enqueue(w, r, req)
}

func (s *server) enqueue(w http.ResponseWriter, r *http.Request, req queue.Request) {
	job, err := s.jobs.Enqueue(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.QueueStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Job(r.Context(), r.PathValue("id"))
	if errors.Is(err, queue.ErrJobNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.coord.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// decodeBody decodes an optional JSON request body. An empty body yields
// the zero request.
func (s *server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Response encode failed")
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
