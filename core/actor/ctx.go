package actor

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type (
	// HandlerCtx is passed to every handler. It is only valid during the
	// handler call, except for Self, Log and Schedule.
	HandlerCtx interface {
		context.Context
		Log() *slog.Logger
		// Schedule runs f outside the actor's loop. f must not touch actor
		// state or issue requests; use Tell or a Promise to report back.
		Schedule(f scheduleFunc)
		// Self returns the actor running the handler.
		Self() Ref
		// Sender returns the actor that sent the current message, or nil.
		Sender() Ref
		// MessageID returns the id of the current message.
		MessageID() MessageID
		// MsgType returns the type name of the current message.
		MsgType() string

		requester() *requester
		claimReply(done *atomic.Bool) Envelope
	}
)

type handlerCtx struct {
	context.Context
	log   *slog.Logger
	self  Ref
	sched Scheduler
	req   *requester

	// cur is the message being handled; promise is the delivery flag of the
	// Promise that took over its reply, if any.
	cur     Envelope
	promise *atomic.Bool
}

func (hc *handlerCtx) Schedule(f scheduleFunc) { hc.sched.Schedule(f) }

func (hc *handlerCtx) Log() *slog.Logger     { return hc.log }
func (hc *handlerCtx) Self() Ref             { return hc.self }
func (hc *handlerCtx) Sender() Ref           { return hc.cur.Sender }
func (hc *handlerCtx) MessageID() MessageID  { return hc.cur.ID }
func (hc *handlerCtx) MsgType() string       { return hc.cur.Type }
func (hc *handlerCtx) requester() *requester { return hc.req }

func (hc *handlerCtx) claimReply(done *atomic.Bool) Envelope {
	hc.promise = done
	return hc.cur
}

func (hc *handlerCtx) begin(env Envelope) {
	hc.cur = env
	hc.promise = nil
}

var _ HandlerCtx = (*handlerCtx)(nil)
