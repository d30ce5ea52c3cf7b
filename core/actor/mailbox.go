package actor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// mailbox is a two-lane queue. Receivers drain the high lane before the
// normal one; the lane is picked from the envelope id's priority bit.
type mailbox struct {
	high   chan Envelope
	normal chan Envelope

	stop     chan struct{}
	stopOnce sync.Once

	// mu guards closed; put holds it shared for the whole enqueue so that
	// close can tell when no more envelopes can land.
	mu     sync.RWMutex
	closed bool
}

func newMailbox(size int) *mailbox {
	return &mailbox{
		high:   make(chan Envelope, size),
		normal: make(chan Envelope, size),
		stop:   make(chan struct{}),
	}
}

func (m *mailbox) lane(id MessageID) chan Envelope {
	if id.Priority() == PriorityHigh {
		return m.high
	}
	return m.normal
}

// put enqueues env, blocking until enqueued, ctx is done or the mailbox
// is closed.
func (m *mailbox) put(ctx context.Context, env Envelope) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrActorStopped
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("send failed: %w", ctx.Err())
	case <-m.stop:
		return ErrActorStopped
	case m.lane(env.ID) <- env:
		return nil
	}
}

// tryGet returns the next envelope without blocking, high lane first.
func (m *mailbox) tryGet() (Envelope, bool) {
	select {
	case env := <-m.high:
		return env, true
	default:
	}
	select {
	case env := <-m.normal:
		return env, true
	default:
		return Envelope{}, false
	}
}

func (m *mailbox) depth() int { return len(m.high) + len(m.normal) }

// close rejects further puts and returns whatever was still queued.
func (m *mailbox) close() []Envelope {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	var rest []Envelope
	for {
		env, ok := m.tryGet()
		if !ok {
			return rest
		}
		rest = append(rest, env)
	}
}

// rejectQueued answers every request in envs with a delivery failure. Plain
// messages and stray responses are dropped.
func rejectQueued(ctx context.Context, log *slog.Logger, self string, envs []Envelope) {
	for _, env := range envs {
		if !env.ID.IsRequest() || env.Sender == nil {
			continue
		}
		resp := Envelope{
			ID:          env.ID.ResponseID(),
			Type:        env.Type,
			ContentType: env.ContentType,
			Err:         fmt.Errorf("%w: %s: %w", ErrDeliveryFailed, self, ErrActorStopped),
		}
		deliverReply(ctx, log, env.Sender, resp)
	}
}
