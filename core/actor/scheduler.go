package actor

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type scheduleFunc func()

// Scheduler runs background tasks on behalf of an actor.
type Scheduler interface {
	Schedule(f scheduleFunc)
}

type scheduler struct {
	ctx      context.Context
	log      *slog.Logger
	inflight atomic.Int32
	sem      chan struct{} // nil when unbounded

	actorID string
	metrics ActorMetrics
}

// Schedule starts f unless the scheduler's context is already done. With
// a bound, f waits for a free slot (or cancellation) before it runs.
func (s *scheduler) Schedule(f scheduleFunc) {
	if s.ctx.Err() != nil {
		return
	}

	go func() {
		if s.sem != nil {
			select {
			case <-s.ctx.Done():
				return
			case s.sem <- struct{}{}:
			}
			defer func() { <-s.sem }()
		}

		s.metrics.SchedulerInflight(s.actorID, int(s.inflight.Add(1)))
		defer func() {
			s.metrics.SchedulerInflight(s.actorID, int(s.inflight.Add(-1)))
		}()

		s.runTask(f)
	}()
}

func (s *scheduler) runTask(f scheduleFunc) {
	defer s.metrics.SchedulerTaskDuration().ObserveDuration()

	defer func() {
		if r := recover(); r != nil {
			s.metrics.SchedulerTaskCompleted(false)
			s.log.Error("scheduled task panicked", slog.Any("recovered", r))
		}
	}()

	f()
	s.metrics.SchedulerTaskCompleted(true)
}

// newScheduler creates a scheduler that runs at most max tasks at once.
// If max <= 0, concurrency is unlimited. Tasks not yet started are skipped
// once ctx is done.
func newScheduler(ctx context.Context, max int, log *slog.Logger, actorID string, m ActorMetrics) *scheduler {
	var sem chan struct{}
	if max > 0 {
		sem = make(chan struct{}, max)
	}
	if m == nil {
		m = NopActorMetrics()
	}
	return &scheduler{
		ctx:     ctx,
		sem:     sem,
		log:     log,
		actorID: actorID,
		metrics: m,
	}
}
