package actor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/VenturaDelMonte/actor-framework/internal/codec"
)

// ResponseHandle is returned by Request to event-based actors. It is
// consumed by exactly one call to Then or Await; dropping it abandons the
// request, and a reply arriving later is discarded.
type ResponseHandle[OUT any] struct {
	r *requester
	e *pendingEntry
}

// ID returns the response id the reply is matched against.
func (h *ResponseHandle[OUT]) ID() MessageID { return h.e.id }

// Then registers continuations for the reply. Other messages keep being
// processed while the request is outstanding, and replies to several
// Then-handles may run in any order.
//
// onErr receives timeouts, delivery failures and handler errors. If it is
// nil those outcomes are logged.
func (h *ResponseHandle[OUT]) Then(onReply func(*OUT), onErr func(error)) {
	h.register(false, onReply, onErr)
}

// Await registers continuations like Then, but the actor stops processing
// ordinary messages until this reply (or its timeout) arrived. Messages
// received meanwhile are buffered and processed afterwards in order.
func (h *ResponseHandle[OUT]) Await(onReply func(*OUT), onErr func(error)) {
	h.register(true, onReply, onErr)
}

func (h *ResponseHandle[OUT]) register(await bool, onReply func(*OUT), onErr func(error)) {
	if onErr == nil {
		onErr = func(err error) {
			h.r.log.Warn("unhandled request failure",
				slog.String("id", h.e.id.String()),
				slog.String("msg_type", h.e.msgType),
				slog.Any("error", err),
			)
		}
	}
	if h.e.consumed {
		onErr(ErrHandleConsumed)
		return
	}
	h.e.consumed = true

	cb := func(env Envelope) {
		out, err := decodeReply[OUT](env)
		if err != nil {
			onErr(err)
			return
		}
		if onReply != nil {
			onReply(out)
		}
	}

	if h.e.state == entryResolved {
		cb(h.e.result)
		return
	}
	h.e.onResolve = cb
	if await {
		h.e.awaited = true
		h.r.pending.awaiting++
	}
}

// BlockingHandle is returned by BlockingRequest to scoped actors.
type BlockingHandle[OUT any] struct {
	s *Scoped
	e *pendingEntry
}

// ID returns the response id the reply is matched against.
func (h *BlockingHandle[OUT]) ID() MessageID { return h.e.id }

// Receive suspends until the reply or the timeout for this request is
// processed. Other messages arriving meanwhile are buffered, not handled.
//
// If ctx is done first, ctx.Err() is returned and the handle stays usable.
// Once a result was returned, further calls fail with ErrHandleConsumed.
func (h *BlockingHandle[OUT]) Receive(ctx context.Context) (*OUT, error) {
	if h.e.consumed {
		return nil, ErrHandleConsumed
	}
	if err := h.s.waitFor(ctx, h.e); err != nil {
		return nil, err
	}
	h.e.consumed = true
	return decodeReply[OUT](h.e.result)
}

func decodeReply[OUT any](env Envelope) (*OUT, error) {
	if env.Err != nil {
		return nil, env.Err
	}
	if len(env.Data) == 0 {
		return nil, nil
	}
	out := new(OUT)
	if err := codec.Unmarshal(env.ContentType, env.Data, out); err != nil {
		return nil, fmt.Errorf("decode reply %s: %w", env.Type, err)
	}
	return out, nil
}
