package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/VenturaDelMonte/actor-framework/internal/codec"
)

// NoTimeout disables the request timeout. A zero duration never means
// "time out immediately".
const NoTimeout time.Duration = 0

type requestOpts struct {
	timeout  time.Duration
	priority Priority
}

// RequestOption configures a single request.
type RequestOption func(*requestOpts)

// WithTimeout resolves the request with ErrRequestTimeout if no reply
// arrived within d. Zero or negative durations mean no timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOpts) {
		if d < 0 {
			d = NoTimeout
		}
		o.timeout = d
	}
}

// WithPriority tags the request (and its reply) with p.
func WithPriority(p Priority) RequestOption {
	return func(o *requestOpts) { o.priority = p }
}

func newRequestOpts(opts []RequestOption) requestOpts {
	o := requestOpts{timeout: NoTimeout, priority: PriorityNormal}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Request sends msg to target from inside a handler and returns a handle
// for the reply. The reply type OUT is fixed by target's signature, so a
// payload the target does not accept does not compile.
//
// Continuations registered on the handle run in the calling actor's own
// loop, never concurrently with its handlers.
func Request[IN, OUT any](hc HandlerCtx, target TypedRef[IN, OUT], msg IN, opts ...RequestOption) *ResponseHandle[OUT] {
	r := hc.requester()
	e := r.dispatch(target.ref, msgTypeFor[IN](), msg, newRequestOpts(opts))
	return &ResponseHandle[OUT]{r: r, e: e}
}

// BlockingRequest sends msg to target on behalf of a scoped actor and
// returns a handle whose Receive suspends the caller until the reply or
// the timeout arrives.
func BlockingRequest[IN, OUT any](self *Scoped, target TypedRef[IN, OUT], msg IN, opts ...RequestOption) *BlockingHandle[OUT] {
	e := self.req.dispatch(target.ref, msgTypeFor[IN](), msg, newRequestOpts(opts))
	return &BlockingHandle[OUT]{s: self, e: e}
}

// RequestAny is the dynamically typed variant of Request for callers that
// only know the payload at runtime. Usage errors (nil payload, payload not
// accepted by target) are returned before anything is enqueued.
func RequestAny(hc HandlerCtx, target Ref, payload any, opts ...RequestOption) (*ResponseHandle[any], error) {
	msgType, err := checkPayload(target, payload)
	if err != nil {
		return nil, err
	}
	r := hc.requester()
	e := r.dispatch(target, msgType, payload, newRequestOpts(opts))
	return &ResponseHandle[any]{r: r, e: e}, nil
}

// BlockingRequestAny is the dynamically typed variant of BlockingRequest.
func BlockingRequestAny(self *Scoped, target Ref, payload any, opts ...RequestOption) (*BlockingHandle[any], error) {
	msgType, err := checkPayload(target, payload)
	if err != nil {
		return nil, err
	}
	e := self.req.dispatch(target, msgType, payload, newRequestOpts(opts))
	return &BlockingHandle[any]{s: self, e: e}, nil
}

func checkPayload(target Ref, payload any) (string, error) {
	if target == nil {
		return "", ErrNilRef
	}
	if payload == nil {
		return "", ErrEmptyPayload
	}
	msgType := msgTypeOf(payload)
	if !acceptsInput(target.Signatures(), msgType) {
		return "", fmt.Errorf("%w: actor=%s msg_type=%s accepts=%v",
			ErrSignatureMismatch, target.ID(), msgType, target.Signatures().Values())
	}
	return msgType, nil
}

// Tell sends a fire-and-forget message. If ctx is a HandlerCtx the calling
// actor is recorded as sender. Any reply of the target's handler is dropped.
func Tell(ctx context.Context, target Ref, msg any) error {
	msgType, err := checkPayload(target, msg)
	if err != nil {
		return err
	}

	env := Envelope{Type: msgType}
	if hc, ok := ctx.(HandlerCtx); ok {
		env.Sender = hc.Self()
		env.ContentType = hc.requester().contentType
	}
	if env.Data, err = codec.Marshal(env.ContentType, msg); err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	return target.Send(ctx, env)
}
