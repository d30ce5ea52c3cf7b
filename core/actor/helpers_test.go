package actor

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/VenturaDelMonte/actor-framework/core/ds"
)

type (
	ping struct{ Seq int }
	pong struct{ Seq int }

	// query asks for a string reply, optionally after Delay.
	query struct {
		V     int
		Delay time.Duration
	}

	kick struct{ N int }
	note struct{ N int }
	gate struct{}
)

func newTestActor(t *testing.T, hs ...HandlerRegistration) Actor {
	t.Helper()
	return newTestActorWithOpts(t, Options{}, hs...)
}

func newTestActorWithOpts(t *testing.T, cfg Options, hs ...HandlerRegistration) Actor {
	t.Helper()
	cfg.Context = t.Context()
	cfg.ControlSize = 10_000
	cfg.MailboxSize = 10_000
	cfg.MaxConcurrentTasks = 1000

	a := New(cfg, TypedHandlers(hs...))
	t.Cleanup(a.Stop)
	return a
}

func newTestScoped(t *testing.T, cfg ScopedOptions) *Scoped {
	t.Helper()
	if cfg.Context == nil {
		cfg.Context = t.Context()
	}
	s := NewScoped(cfg)
	t.Cleanup(s.Close)
	return s
}

// recv waits for one value on ch or fails the test.
func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for value")
		panic("unreachable")
	}
}

// noRecv fails the test if ch yields a value within d.
func noRecv[T any](t *testing.T, ch <-chan T, d time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value: %v", v)
	case <-time.After(d):
	}
}

// outcome is what a continuation observed.
type outcome[T any] struct {
	val *T
	err error
}

// delayedReplier replies to query with "v=<V>" after query.Delay without
// blocking its own loop.
func delayedReplier() HandlerRegistration {
	return HandleRequest[query, string](func(hc HandlerCtx, q query) (*string, error) {
		if q.Delay == 0 {
			s := replyFor(q)
			return &s, nil
		}
		p := NewPromise[string](hc)
		hc.Schedule(func() {
			time.Sleep(q.Delay)
			s := replyFor(q)
			_ = p.Deliver(context.Background(), &s)
		})
		return nil, nil
	})
}

func replyFor(q query) string { return "v=" + strconv.Itoa(q.V) }

// recordingRef is a Ref that records envelopes instead of delivering them.
type recordingRef struct {
	id   string
	sigs *ds.Set[Signature]
	done chan struct{}

	mu   sync.Mutex
	sent []Envelope
}

func newRecordingRef(sigs ...Signature) *recordingRef {
	return &recordingRef{id: "recorder", sigs: ds.NewSet(sigs...), done: make(chan struct{})}
}

func (r *recordingRef) ID() string                     { return r.id }
func (r *recordingRef) Signatures() *ds.Set[Signature] { return r.sigs }
func (r *recordingRef) Done() <-chan struct{}          { return r.done }

func (r *recordingRef) Send(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, env)
	return nil
}

func (r *recordingRef) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// countingMetrics records request outcomes.
type countingMetrics struct {
	nopActorMetrics

	mu       sync.Mutex
	started  int
	resolved map[string]int
	orphaned int
	panics   int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{resolved: make(map[string]int)}
}

func (m *countingMetrics) RequestStarted(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *countingMetrics) RequestResolved(_ string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved[outcome]++
}

func (m *countingMetrics) ResponseOrphaned(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orphaned++
}

func (m *countingMetrics) MessagePanic(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

func (m *countingMetrics) outcomes(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolved[outcome]
}

func (m *countingMetrics) orphans() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orphaned
}
