package actor

import (
	"context"
	"fmt"

	"github.com/VenturaDelMonte/actor-framework/core/ds"
)

// Ref addresses an actor. Send is the only operation that may be called
// from any goroutine; everything behind it runs in the actor's own loop.
type Ref interface {
	// ID returns the actor's unique identity.
	ID() string
	// Signatures returns the message signatures the actor accepts.
	Signatures() *ds.Set[Signature]
	// Send enqueues an envelope, blocking until enqueued, ctx is done or the
	// actor stopped.
	Send(ctx context.Context, env Envelope) error
	// Done is closed once the actor stopped.
	Done() <-chan struct{}
}

// TypedRef is a view of a Ref that statically accepts IN and replies with
// OUT. Requests through it are checked by the compiler; the runtime check
// happens once, when the view is created with As.
type TypedRef[IN, OUT any] struct {
	ref Ref
}

// Ref returns the underlying untyped reference.
func (r TypedRef[IN, OUT]) Ref() Ref { return r.ref }

func (r TypedRef[IN, OUT]) String() string {
	if r.ref == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s[%s]", r.ref.ID(), SignatureFor[IN, OUT]())
}

// As narrows ref to a TypedRef after verifying that ref declares a handler
// for IN replying with OUT.
func As[IN, OUT any](ref Ref) (TypedRef[IN, OUT], error) {
	if ref == nil {
		return TypedRef[IN, OUT]{}, ErrNilRef
	}
	sig := SignatureFor[IN, OUT]()
	if !accepts(ref.Signatures(), sig) {
		return TypedRef[IN, OUT]{}, fmt.Errorf("%w: actor=%s signature=%s accepts=%v",
			ErrSignatureMismatch, ref.ID(), sig, ref.Signatures().Values())
	}
	return TypedRef[IN, OUT]{ref: ref}, nil
}

// MustAs is like As but panics on mismatch. Use it where the receiver's
// interface is known at wiring time.
func MustAs[IN, OUT any](ref Ref) TypedRef[IN, OUT] {
	r, err := As[IN, OUT](ref)
	if err != nil {
		panic(err)
	}
	return r
}

// isStopped reports whether ref is known to be unreachable.
func isStopped(ref Ref) bool {
	select {
	case <-ref.Done():
		return true
	default:
		return false
	}
}
