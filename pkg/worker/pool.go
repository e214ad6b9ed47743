package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/merchstats/ordersync/pkg/logging"
	"github.com/merchstats/ordersync/pkg/queue"
)

// claimTimeout bounds each blocking claim so the loop can observe
// shutdown between polls.
const claimTimeout = 5 * time.Second

// Pool runs one claim loop per job category against a shared queue. A
// failing or panicking handler fails its job and the loop keeps going.
type Pool struct {
	queue    *queue.Queue
	handlers *Handlers
	logger   zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a worker pool over the queue and handler set.
func NewPool(q *queue.Queue, handlers *Handlers) *Pool {
	if q == nil {
		panic("queue cannot be nil")
	}
	if handlers == nil {
		panic("handlers cannot be nil")
	}
	return &Pool{
		queue:    q,
		handlers: handlers,
		logger:   logging.NewLogger("worker-pool"),
	}
}

// Start launches the per-category loops.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, cat := range queue.Categories() {
		p.wg.Add(1)
		go p.loop(ctx, cat)
	}
	p.logger.Info().Int("categories", len(queue.Categories())).Msg("Worker pool started")
}

// Stop halts the loops and waits for in-flight jobs to settle.
func (p *Pool) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.logger.Info().Msg("Worker pool stopped")
}

// loop claims and runs jobs for one category until the context ends.
func (p *Pool) loop(ctx context.Context, cat queue.Category) {
	defer p.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.queue.Claim(ctx, cat, claimTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error().Err(err).Str("category", string(cat)).Msg("Claim failed")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		// Only the claim loop observes shutdown. A claimed job keeps its
		// own uncancelled context so it always reaches a terminal status.
		p.run(context.WithoutCancel(ctx), job)
	}
}

// run dispatches one claimed job to its handler and records the outcome.
func (p *Pool) run(ctx context.Context, job *queue.Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("job_id", job.ID).
				Interface("panic", r).
				Msg("Job handler panicked")
			p.fail(ctx, job.ID, fmt.Sprintf("handler panic: %v", r))
		}
	}()

	progress := func(pct int) {
		if err := p.queue.UpdateProgress(ctx, job.ID, pct); err != nil {
			p.logger.Debug().Err(err).Str("job_id", job.ID).Msg("Progress update failed")
		}
	}

	var (
		result any
		err    error
	)
	switch req := job.Request.(type) {
	case queue.SyncRequest:
		result, err = p.handlers.Sync(ctx, req, progress)
	case queue.AnalyticsRequest:
		result, err = p.handlers.Analytics(ctx, req, progress)
	case queue.WarmRequest:
		result, err = p.handlers.Warm(ctx, req, progress)
	case queue.CleanupRequest:
		result, err = p.handlers.Cleanup(ctx, req, progress)
	default:
		err = fmt.Errorf("no handler for request %T", job.Request)
	}

	if err != nil {
		p.fail(ctx, job.ID, err.Error())
		return
	}
	if err := p.queue.Complete(ctx, job.ID, result); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("Completion record failed")
	}
}

func (p *Pool) fail(ctx context.Context, id, reason string) {
	if err := p.queue.Fail(ctx, id, reason); err != nil {
		p.logger.Error().Err(err).Str("job_id", id).Msg("Failure record failed")
	}
}
