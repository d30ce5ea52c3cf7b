package actor

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Promise lets a handler reply to the current request later, from another
// turn or from a scheduled task. Creating a promise suppresses the reply the
// handler's return value would otherwise produce.
type Promise[OUT any] struct {
	req  Envelope
	self string
	log  *slog.Logger
	done atomic.Bool
}

// NewPromise takes over the reply to the message hc is handling. For
// plain messages (no request id) the promise is a no-op. If the handler
// still returns an error (or panics), that error answers the request and
// the promise counts as delivered.
func NewPromise[OUT any](hc HandlerCtx) *Promise[OUT] {
	p := &Promise[OUT]{
		self: hc.Self().ID(),
		log:  hc.Log(),
	}
	p.req = hc.claimReply(&p.done)
	return p
}

// Pending reports whether the promise has not been delivered yet.
func (p *Promise[OUT]) Pending() bool { return !p.done.Load() }

// Deliver sends v as the reply. Safe to call from any goroutine, at most once.
func (p *Promise[OUT]) Deliver(ctx context.Context, v *OUT) error {
	if p.done.Swap(true) {
		return ErrPromiseDelivered
	}
	var res any
	if v != nil {
		res = v
	}
	return sendReply(ctx, p.log, p.self, p.req, res, nil)
}

// Fail sends err as the reply. The requester receives it as a *RemoteError.
func (p *Promise[OUT]) Fail(ctx context.Context, err error) error {
	if p.done.Swap(true) {
		return ErrPromiseDelivered
	}
	return sendReply(ctx, p.log, p.self, p.req, nil, err)
}
