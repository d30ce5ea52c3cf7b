package actor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/VenturaDelMonte/actor-framework/core/ds"
	"github.com/VenturaDelMonte/actor-framework/internal/codec"
)

// Ack is the reply type of fire-and-forget handlers registered with
// HandleMsg. A request to such a handler resolves with a nil *Ack once the
// handler returned.
type Ack struct{}

type (
	// RawHandler is the low-level interface for handling actor messages.
	// Most users should use [TypedHandlers] instead of implementing this directly.
	RawHandler interface {
		// InitHandler is called once when the actor starts, before processing messages.
		InitHandler(hc HandlerCtx) error
		// HandleMessage processes a message and returns the reply payload.
		HandleMessage(hc HandlerCtx, env Envelope) (any, error)
		// Signatures returns the message signatures this handler accepts.
		Signatures() *ds.Set[Signature]
	}

	// MsgHandlerFunc is the signature for message handler functions.
	MsgHandlerFunc func(hc HandlerCtx, msg any) (any, error)

	// HandlerInitFunc is called during actor initialization.
	HandlerInitFunc func(hc HandlerCtx) error

	// Registration describes one handler. Zero fields are ignored, so an
	// init-only registration leaves MsgType empty.
	Registration struct {
		MsgType string
		OutType string
		New     func() any
		Handle  MsgHandlerFunc
		Init    HandlerInitFunc
	}

	// HandlerRegistrar allows registering message handlers with the actor.
	HandlerRegistrar interface {
		Register(r Registration)
	}

	// HandlerRegistration is a function that registers handlers with a registrar.
	// Create these using [HandleMsg], [HandleRequest], [HandleEvery], etc.
	HandlerRegistration func(registrar HandlerRegistrar)
)

// TypedHandlerRegistry dispatches incoming messages to typed handlers by
// message type and publishes the resulting signature set.
type TypedHandlerRegistry struct {
	mu             sync.RWMutex
	inits          []HandlerInitFunc
	handlers       map[string]MsgHandlerFunc
	types          map[string]func() any
	sigs           *ds.Set[Signature]
	defaultHandler MsgHandlerFunc
}

// ToActor creates and starts an actor using this handler registry.
func (t *TypedHandlerRegistry) ToActor(opts Options) Actor {
	return New(opts, t)
}

// Register adds a handler. This is typically called indirectly via
// [HandleMsg], [HandleRequest], etc.
func (t *TypedHandlerRegistry) Register(r Registration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.MsgType != "" {
		if r.Handle != nil {
			t.handlers[r.MsgType] = r.Handle
			t.sigs.Add(Signature{In: r.MsgType, Out: r.OutType})
		}
		if r.New != nil {
			t.types[r.MsgType] = r.New
		}
	}

	if r.Init != nil {
		t.inits = append(t.inits, r.Init)
	}
}

// Signatures returns a snapshot of the accepted signatures.
func (t *TypedHandlerRegistry) Signatures() *ds.Set[Signature] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sigs.Copy()
}

// InitHandler initializes all registered handlers. Called by the actor on startup.
func (t *TypedHandlerRegistry) InitHandler(hc HandlerCtx) error {
	t.mu.Lock()
	if dh, ok := t.handlers[wildcard]; ok {
		t.defaultHandler = dh
	} else {
		t.defaultHandler = func(hc HandlerCtx, msg any) (any, error) {
			return nil, fmt.Errorf("no handler for msg: msg_type=%s", hc.MsgType())
		}
	}
	inits := append([]HandlerInitFunc(nil), t.inits...)
	t.mu.Unlock()

	for _, i := range inits {
		if err := i(hc); err != nil {
			return fmt.Errorf("failed to init handler: %w", err)
		}
	}
	return nil
}

// HandleMessage decodes env with its content type and dispatches it to the
// handler registered for env.Type.
func (t *TypedHandlerRegistry) HandleMessage(hc HandlerCtx, env Envelope) (any, error) {
	t.mu.RLock()
	h, ok := t.handlers[env.Type]
	f, hasType := t.types[env.Type]
	dh := t.defaultHandler
	t.mu.RUnlock()

	if !ok {
		return dh(hc, env.Data)
	}
	if !hasType {
		return nil, fmt.Errorf("no type registered for message type %s", env.Type)
	}
	msg := f()
	if err := codec.Unmarshal(env.ContentType, env.Data, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return h(hc, msg)
}

// TypedHandlers creates a new handler registry with the given handlers.
// This is the primary way to define actor message handlers.
//
// Example:
//
//	registry := actor.TypedHandlers(
//	    actor.HandleMsg[MyCommand](handleMyCommand),
//	    actor.HandleRequest[MyQuery, MyResponse](handleMyQuery),
//	)
//	myActor := registry.ToActor(actor.Options{})
func TypedHandlers(handlers ...HandlerRegistration) *TypedHandlerRegistry {
	th := &TypedHandlerRegistry{
		handlers: make(map[string]MsgHandlerFunc),
		types:    make(map[string]func() any),
		sigs:     ds.NewSet[Signature](),
	}
	for _, h := range handlers {
		h(th)
	}
	return th
}

// DefaultHandler registers a fallback for messages without a specific
// handler. It receives the encoded payload and accepts any signature.
func DefaultHandler(h func(HandlerCtx, any) (any, error)) HandlerRegistration {
	return func(registrar HandlerRegistrar) {
		registrar.Register(Registration{MsgType: wildcard, OutType: wildcard, Handle: h})
	}
}

// Init registers an initialization function called when the actor starts.
func Init(initFunc HandlerInitFunc) HandlerRegistration {
	return func(registrar HandlerRegistrar) {
		registrar.Register(Registration{Init: initFunc})
	}
}

// HandleMsg registers a fire-and-forget message handler for type IN.
func HandleMsg[IN any](msgHandler func(h HandlerCtx, i IN) error) HandlerRegistration {
	return HandleMsgWithOpts(msgHandler)
}

// HandleMsgWithOpts registers a message handler with additional options.
func HandleMsgWithOpts[IN any](
	msgHandler func(h HandlerCtx, i IN) error,
	opts ...HandleOption,
) HandlerRegistration {
	return HandleRequestWithOpts[IN, Ack](
		func(h HandlerCtx, i IN) (*Ack, error) {
			return nil, msgHandler(h, i)
		},
		opts...,
	)
}

type tickMsg struct{ mt string }

func (m tickMsg) MsgType() string { return m.mt }

// HandleEvery registers a periodic task that runs at the given interval.
// Ticks go through the actor's mailbox, so the task never runs
// concurrently with other handlers.
func HandleEvery(interval time.Duration, msgHandler func(h HandlerCtx) error) HandlerRegistration {
	msg := tickMsg{mt: "tick/" + gonanoid.Must()}

	return HandleMsgWithOpts[tickMsg](
		func(h HandlerCtx, tick tickMsg) error {
			return msgHandler(h)
		},
		WithMessageType(msg.MsgType()),
		WithInitFunc(func(hc HandlerCtx) error {
			self := hc.Self()
			tmr := time.NewTicker(interval)
			go func() {
				defer tmr.Stop()
				for {
					select {
					case <-hc.Done():
						return
					case <-tmr.C:
						if err := Tell(hc, self, msg); err != nil {
							hc.Log().Warn("failed to send tick message", slog.Any("error", err))
						}
					}
				}
			}()
			return nil
		}),
	)
}

// HandleRequest registers a request-response handler. The handler receives
// a message of type IN and returns a response of type *OUT.
func HandleRequest[IN any, OUT any](h func(h HandlerCtx, i IN) (*OUT, error)) HandlerRegistration {
	return HandleRequestWithOpts(h)
}

// HandleOpts configures handler registration.
type HandleOpts struct {
	// MessageType overrides the default type name derived from the Go type.
	MessageType string
	// InitFunc is called during actor initialization.
	InitFunc HandlerInitFunc
}

// HandleOption configures handler registration behavior.
type HandleOption func(*HandleOpts)

// WithMessageType overrides the message type name used for routing.
func WithMessageType(msgType string) HandleOption {
	return func(o *HandleOpts) {
		o.MessageType = msgType
	}
}

// WithInitFunc adds an initialization function to be called on actor startup.
func WithInitFunc(init HandlerInitFunc) HandleOption {
	return func(o *HandleOpts) {
		o.InitFunc = init
	}
}

// HandleRequestWithOpts registers a request-response handler with additional options.
func HandleRequestWithOpts[IN any, OUT any](
	h func(h HandlerCtx, i IN) (*OUT, error),
	opts ...HandleOption,
) HandlerRegistration {
	handleOpts := HandleOpts{
		MessageType: msgTypeFor[IN](),
	}
	for _, opt := range opts {
		opt(&handleOpts)
	}
	return func(registrar HandlerRegistrar) {
		registrar.Register(Registration{
			MsgType: handleOpts.MessageType,
			OutType: msgTypeFor[OUT](),
			New:     func() any { return new(IN) },
			Handle: func(hc HandlerCtx, msg any) (any, error) {
				i, ok := msg.(*IN)
				if !ok {
					return nil, fmt.Errorf("invalid request message type: %T", msg)
				}
				out, err := h(hc, *i)
				if err != nil {
					return nil, err
				}
				if out == nil {
					return nil, nil
				}
				return out, nil
			},
			Init: handleOpts.InitFunc,
		})
	}
}
