package actor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/VenturaDelMonte/actor-framework/core/metrics"
	"github.com/VenturaDelMonte/actor-framework/internal/codec"
)

type entryState uint8

const (
	entryArmed entryState = iota
	entryResolved
)

// pendingEntry tracks one outstanding request from arming to retirement.
// It is shared between the pending table and the response handle; once
// resolved it leaves the table and lives on only through the handle.
type pendingEntry struct {
	id      MessageID // response id
	msgType string
	state   entryState
	result  Envelope

	timer    *time.Timer
	duration metrics.Timer

	onResolve func(Envelope)
	awaited   bool
	consumed  bool
}

// pendingTable maps response ids to outstanding requests. Only the owning
// actor's loop touches it.
type pendingTable struct {
	entries  map[MessageID]*pendingEntry
	awaiting int
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[MessageID]*pendingEntry)}
}

func (t *pendingTable) arm(id MessageID, msgType string, duration metrics.Timer) *pendingEntry {
	e := &pendingEntry{id: id, msgType: msgType, duration: duration}
	t.entries[id] = e
	return e
}

// take retires id. It reports false if id is unknown or already retired.
func (t *pendingTable) take(id MessageID) (*pendingEntry, bool) {
	e, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	delete(t.entries, id)
	return e, true
}

func (t *pendingTable) len() int { return len(t.entries) }

// requester is the request capability shared by event-based actors and
// scoped (blocking) actors. It holds the owner's mailbox-facing operations:
// id allocation, outbound enqueue, self-addressed timeouts and the pending
// table. It must only be used from the owner's execution context.
type requester struct {
	self        Ref
	ctx         context.Context
	log         *slog.Logger
	metrics     ActorMetrics
	contentType string

	ids     idAllocator
	pending *pendingTable

	// local holds resolutions produced inside the owner's own turn (for
	// example an unreachable target). They are consumed like mailbox
	// responses, before the next mailbox read.
	local []Envelope
}

func newRequester(self Ref, ctx context.Context, log *slog.Logger, m ActorMetrics, contentType string) *requester {
	return &requester{
		self:        self,
		ctx:         ctx,
		log:         log,
		metrics:     m,
		contentType: contentType,
		pending:     newPendingTable(),
	}
}

// dispatch allocates an id, enqueues payload to target and arms the timeout.
// It never fails: problems resolve the returned entry instead.
func (r *requester) dispatch(target Ref, msgType string, payload any, o requestOpts) *pendingEntry {
	id := r.ids.next(o.priority)
	e := r.pending.arm(id.ResponseID(), msgType, r.metrics.RequestDuration(msgType))
	r.metrics.RequestStarted(msgType)
	r.metrics.PendingRequests(r.self.ID(), r.pending.len())

	if target == nil {
		r.failLocal(e, fmt.Errorf("%w: %w", ErrDeliveryFailed, ErrNilRef))
		return e
	}
	if isStopped(target) {
		r.failLocal(e, fmt.Errorf("%w: %s: %w", ErrDeliveryFailed, target.ID(), ErrActorStopped))
		return e
	}

	data, err := codec.Marshal(r.contentType, payload)
	if err != nil {
		r.failLocal(e, fmt.Errorf("encode %s: %w", msgType, err))
		return e
	}

	env := Envelope{
		ID:          id,
		Type:        msgType,
		ContentType: r.contentType,
		Data:        data,
		Sender:      r.self,
	}
	if err := target.Send(r.ctx, env); err != nil {
		r.failLocal(e, fmt.Errorf("%w: %s: %w", ErrDeliveryFailed, target.ID(), err))
		return e
	}

	r.armTimeout(e, o.timeout)
	return e
}

// armTimeout schedules a self-addressed timeout envelope for e. A zero
// timeout means the request never times out.
func (r *requester) armTimeout(e *pendingEntry, d time.Duration) {
	if d <= NoTimeout {
		return
	}
	env := Envelope{ID: e.id, Type: timeoutMsgType, Err: ErrRequestTimeout}
	e.timer = time.AfterFunc(d, func() {
		if err := r.self.Send(r.ctx, env); err != nil {
			r.log.Debug("timeout not delivered", slog.String("id", e.id.String()), slog.Any("error", err))
		}
	})
}

func (r *requester) failLocal(e *pendingEntry, err error) {
	r.local = append(r.local, Envelope{ID: e.id, Type: e.msgType, Err: err})
}

func (r *requester) popLocal() (Envelope, bool) {
	if len(r.local) == 0 {
		return Envelope{}, false
	}
	env := r.local[0]
	r.local = r.local[1:]
	return env, true
}

// resolve applies a response or timeout envelope. Whichever of the two
// arrives first wins; the loser finds the id retired and is dropped.
func (r *requester) resolve(env Envelope) bool {
	e, ok := r.pending.take(env.ID)
	if !ok {
		if env.isTimeout() {
			return false
		}
		r.metrics.ResponseOrphaned(env.Type)
		r.log.Debug("dropping orphaned response",
			slog.String("id", env.ID.String()),
			slog.String("msg_type", env.Type),
		)
		return false
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	e.state = entryResolved
	e.result = env
	e.duration.ObserveDuration()
	r.metrics.RequestResolved(e.msgType, outcomeOf(env.Err))
	r.metrics.PendingRequests(r.self.ID(), r.pending.len())

	if e.awaited {
		r.pending.awaiting--
	}
	if cb := e.onResolve; cb != nil {
		e.onResolve = nil
		cb(env)
	}
	return true
}

// awaiting reports whether an Await continuation is outstanding.
func (r *requester) awaiting() bool { return r.pending.awaiting > 0 }

// abort retires all outstanding requests without running continuations.
func (r *requester) abort() {
	for id, e := range r.pending.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(r.pending.entries, id)
	}
	r.pending.awaiting = 0
	r.local = nil
	r.metrics.PendingRequests(r.self.ID(), 0)
}
