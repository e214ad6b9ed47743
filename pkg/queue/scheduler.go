package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/merchstats/ordersync/pkg/logging"
)

// Scheduler periodically enqueues sync jobs. It is optional; with no
// scheduler, syncs run only when requested over the API.
type Scheduler struct {
	queue    *Queue
	interval time.Duration
	logger   zerolog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a scheduler that enqueues a sync job every
// interval. The interval must be positive.
func NewScheduler(q *Queue, interval time.Duration) *Scheduler {
	if q == nil {
		panic("queue cannot be nil")
	}
	if interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		queue:    q,
		interval: interval,
		logger:   logging.NewLogger("scheduler"),
	}
}

// Start begins the periodic enqueue loop. The first sync is enqueued
// immediately so a fresh deployment does not wait a full interval.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("Scheduler started")

		s.enqueue(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("Scheduler stopped")
				return
			case <-ticker.C:
				s.enqueue(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) enqueue(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.queue.Enqueue(ctx, SyncRequest{}); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled sync enqueue failed")
	}
}
