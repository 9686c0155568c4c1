package core

// scheduler.go provides the in-process trigger queue and the sweeper.
//
// The queue delivers "run next chunk" triggers to a single worker. Triggers
// are not persisted, so a restart or a full queue can lose one; the sweeper
// runs periodically and re-triggers a suspended run that has not moved for
// a full interval. Duplicate triggers are harmless: the runner ignores
// triggers for stale runs and for runs whose lease is held.

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Queue is an in-memory Scheduler backed by a buffered channel.
type Queue struct {
	ch chan Trigger
}

// NewQueue returns a Queue holding up to size pending triggers.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan Trigger, size)}
}

// ScheduleOnce enqueues t. It never blocks and returns ErrQueueFull when the
// buffer is full.
func (q *Queue) ScheduleOnce(ctx context.Context, t Trigger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued triggers.
func (q *Queue) Pending() int {
	return len(q.ch)
}

// Run delivers triggers to handle one at a time until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, handle func(context.Context, Trigger)) {
	slog.Info("import worker started", "queue_size", cap(q.ch))
	for {
		select {
		case <-ctx.Done():
			slog.Info("import worker stopped")
			return
		case t := <-q.ch:
			handle(ctx, t)
		}
	}
}

// NopScheduler drops triggers. The CLI uses it because it drives chunks
// itself through RunToCompletion.
type NopScheduler struct{}

func (NopScheduler) ScheduleOnce(context.Context, Trigger) error { return nil }

// StartSweeper checks for a stalled run immediately and then every
// interval until ctx is cancelled.
func (r *Runner) StartSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("import sweeper started", "interval", interval)

	r.sweepOnce(ctx, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("import sweeper stopped")
			return
		case <-ticker.C:
			r.sweepOnce(ctx, interval)
		}
	}
}

func (r *Runner) sweepOnce(ctx context.Context, staleAfter time.Duration) {
	triggered, err := r.Sweep(ctx, staleAfter)
	if err != nil {
		slog.Error("import sweep failed", "error", err)
		return
	}
	if triggered {
		slog.Info("import sweep re-triggered stalled run")
	}
}

// Sweep schedules the active run when no lease is live and the state has
// not changed for staleAfter. It reports whether a trigger was issued.
func (r *Runner) Sweep(ctx context.Context, staleAfter time.Duration) (bool, error) {
	st, err := r.loadState(ctx)
	if errors.Is(err, ErrNoActiveRun) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := r.now()
	if st.LeaseHeld(now) || now.Sub(st.UpdatedAt) < staleAfter {
		return false, nil
	}

	if err := r.scheduler.ScheduleOnce(ctx, Trigger{RunID: st.RunID, Reason: ReasonSweep}); err != nil {
		return false, err
	}
	return true, nil
}

// Resume schedules the active run on request, for example after a lost
// trigger. The runner drops the trigger if a chunk is already running.
func (r *Runner) Resume(ctx context.Context) (*ImportState, error) {
	st, err := r.loadState(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.scheduler.ScheduleOnce(ctx, Trigger{RunID: st.RunID, Reason: ReasonManual}); err != nil {
		return nil, err
	}
	return st, nil
}
