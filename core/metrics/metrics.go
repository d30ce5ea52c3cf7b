// Package metrics holds the backend-neutral instrumentation primitives used by
// the actor runtime. Backends such as Prometheus plug in by implementing the
// pillar interfaces (see actor.ActorMetrics) on top of these.
package metrics

import "time"

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes to record the elapsed time.
type Timer interface {
	// ObserveDuration records the elapsed time since the timer was created.
	ObserveDuration()
}

// TimerFunc creates a new Timer. This allows deferred timing patterns like:
// defer m.RequestDuration("ping").ObserveDuration()
type TimerFunc func() Timer

type funcTimer struct {
	start   time.Time
	observe func(seconds float64)
}

func (t *funcTimer) ObserveDuration() { t.observe(time.Since(t.start).Seconds()) }

// NewTimer starts a Timer that reports the elapsed seconds to observe.
func NewTimer(observe func(seconds float64)) Timer {
	if observe == nil {
		return NopTimer()
	}
	return &funcTimer{start: time.Now(), observe: observe}
}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer returns a no-op Timer.
func NopTimer() Timer { return nopTimer{} }

// NopTimerFunc returns a TimerFunc that always returns a no-op Timer.
func NopTimerFunc() TimerFunc { return func() Timer { return nopTimer{} } }
