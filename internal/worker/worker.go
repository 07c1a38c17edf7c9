package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/domain/escrow"
	"ipmarket-server/internal/infrastructure/metrics"
)

// Worker reconciles queued rooms one at a time.
type Worker struct {
	id           int
	tasks        <-chan *chat.Room
	orchestrator *escrow.Orchestrator
	taskTimeout  time.Duration
	log          zerolog.Logger
}

// NewWorker creates a reconcile worker.
func NewWorker(
	id int,
	tasks <-chan *chat.Room,
	orchestrator *escrow.Orchestrator,
	taskTimeout time.Duration,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		id:           id,
		tasks:        tasks,
		orchestrator: orchestrator,
		taskTimeout:  taskTimeout,
		log:          log.With().Int("worker_id", id).Str("component", "reconcile-worker").Logger(),
	}
}

// Start consumes tasks until the context ends.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info().Msg("reconcile worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("reconcile worker stopped")
			return
		case room := <-w.tasks:
			w.reconcile(ctx, room)
		}
	}
}

func (w *Worker) reconcile(ctx context.Context, room *chat.Room) {
	taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	changed, err := w.orchestrator.Reconcile(taskCtx, room)
	if err != nil {
		w.log.Error().Err(err).
			Str("room_id", room.PublicID).
			Str("token_id", room.TokenID).
			Msg("reconcile failed")
		return
	}
	if changed {
		metrics.ReconcileRepairsTotal.Inc()
	}
}
