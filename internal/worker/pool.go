// Package worker runs the background escrow reconciliation sweeps that
// repair chat projections from on-chain state.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/domain/escrow"
	"ipmarket-server/internal/infrastructure/metrics"
)

// Pool manages the sweep ticker and the reconcile workers.
type Pool struct {
	chats        chat.Service
	orchestrator *escrow.Orchestrator

	workerCount int
	interval    time.Duration
	taskTimeout time.Duration

	tasks    chan *chat.Room
	workers  []*Worker
	log      zerolog.Logger
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// Config contains worker pool configuration.
type Config struct {
	WorkerCount   int
	SweepInterval time.Duration
	TaskTimeout   time.Duration
}

// NewPool creates a new reconcile pool.
func NewPool(
	chats chat.Service,
	orchestrator *escrow.Orchestrator,
	cfg Config,
	log zerolog.Logger,
) *Pool {
	return &Pool{
		chats:        chats,
		orchestrator: orchestrator,
		workerCount:  cfg.WorkerCount,
		interval:     cfg.SweepInterval,
		taskTimeout:  cfg.TaskTimeout,
		tasks:        make(chan *chat.Room, 64),
		log:          log.With().Str("component", "reconcile-pool").Logger(),
		stopChan:     make(chan struct{}),
	}
}

// Start launches the workers and the sweep loop.
func (p *Pool) Start(ctx context.Context) error {
	p.log.Info().
		Int("worker_count", p.workerCount).
		Dur("interval", p.interval).
		Msg("starting reconcile pool")

	p.workers = make([]*Worker, p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		worker := NewWorker(i+1, p.tasks, p.orchestrator, p.taskTimeout, p.log)
		p.workers[i] = worker

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Start(ctx)
		}(worker)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sweepLoop(ctx)
	}()

	return nil
}

// Stop gracefully shuts down the pool.
func (p *Pool) Stop() {
	p.log.Info().Msg("stopping reconcile pool")
	close(p.stopChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("reconcile pool stopped")
	case <-time.After(30 * time.Second):
		p.log.Warn().Msg("reconcile pool shutdown timed out")
	}
}

func (p *Pool) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// sweep queues every room with an open escrow projection. A full task
// channel defers the rest to the next tick.
func (p *Pool) sweep(ctx context.Context) {
	rooms, err := p.chats.ListRoomsWithOpenEscrow(ctx)
	if err != nil {
		metrics.ReconcileSweepsTotal.WithLabelValues("error").Inc()
		p.log.Error().Err(err).Msg("sweep failed to list rooms")
		return
	}

	queued := 0
	for _, room := range rooms {
		select {
		case p.tasks <- room:
			queued++
		default:
			p.log.Warn().Int("queued", queued).Int("total", len(rooms)).
				Msg("task queue full, deferring remainder to next sweep")
			metrics.ReconcileSweepsTotal.WithLabelValues("partial").Inc()
			return
		}
	}

	metrics.ReconcileSweepsTotal.WithLabelValues("ok").Inc()
	if queued > 0 {
		p.log.Debug().Int("queued", queued).Msg("sweep queued rooms")
	}
}
