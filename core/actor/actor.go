package actor

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/VenturaDelMonte/actor-framework/core/ds"
	"github.com/VenturaDelMonte/actor-framework/internal/codec"
)

type (
	OnPanic func(recovered any, stack []byte, env Envelope)

	// Actor is a running event-based actor.
	Actor interface {
		Ref
		Pause() error
		Resume() error
		EnableStepMode() error
		Step() error
		// Stop requests shutdown and waits for completion. Requests still
		// queued are answered with ErrDeliveryFailed.
		Stop()
	}
)

// shutdownReplyTimeout bounds each delivery-failure reply sent while
// draining a stopped actor's mailbox.
const shutdownReplyTimeout = time.Second

// ---- control messages (internal) ----

type ctrlKind int

const (
	ctrlPause ctrlKind = iota
	ctrlResume
	ctrlEnableStep
	ctrlStep
	ctrlStop
)

type ctrlMsg struct {
	kind ctrlKind
}

type Options struct {
	// ID identifies the actor. Defaults to a random id.
	ID string
	// MailboxSize is the capacity of each mailbox lane.
	MailboxSize int
	ControlSize int
	Context     context.Context
	Logger      *slog.Logger
	OnPanic     OnPanic
	// MaxConcurrentTasks caps the number of tasks run via HandlerCtx.Schedule.
	// If 0 or negative, it defaults to 32.
	MaxConcurrentTasks int
	// Metrics receives actor and request metrics. Defaults to no-op.
	Metrics ActorMetrics
	// Codec is the content type used for outgoing requests. Defaults to JSON.
	Codec string
}

type BaseActor struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	handler RawHandler
	mb      *mailbox
	control chan ctrlMsg
	done    chan struct{}

	onPanic OnPanic
	metrics ActorMetrics
}

func New(opt Options, handler RawHandler) Actor {
	if opt.ID == "" {
		opt.ID = "actor-" + gonanoid.Must(10)
	}
	if opt.MailboxSize == 0 {
		opt.MailboxSize = 1024
	}
	if opt.ControlSize == 0 {
		opt.ControlSize = 16
	}
	if opt.Context == nil {
		opt.Context = context.Background()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.MaxConcurrentTasks <= 0 {
		opt.MaxConcurrentTasks = 32
	}
	if opt.Metrics == nil {
		opt.Metrics = NopActorMetrics()
	}

	log := opt.Logger.With(slog.String("actor", opt.ID))

	if _, err := codec.Lookup(opt.Codec); err != nil {
		log.Warn("falling back to json codec", slog.String("codec", opt.Codec), slog.Any("error", err))
		opt.Codec = codec.ContentTypeJSON
	}
	if opt.OnPanic == nil {
		opt.OnPanic = func(recovered any, stack []byte, env Envelope) {
			log.Error("actor panicked",
				slog.Any("recovered", recovered),
				slog.String("stack", string(stack)),
				slog.String("msg_type", env.Type),
				slog.String("id", env.ID.String()),
			)
		}
	}

	ctx, cancel := context.WithCancel(opt.Context)

	a := &BaseActor{
		id:      opt.ID,
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
		handler: handler,
		mb:      newMailbox(opt.MailboxSize),
		control: make(chan ctrlMsg, opt.ControlSize),
		done:    make(chan struct{}),
		onPanic: opt.OnPanic,
		metrics: opt.Metrics,
	}

	hc := &handlerCtx{
		Context: ctx,
		log:     log,
		self:    a,
		sched:   newScheduler(ctx, opt.MaxConcurrentTasks, log, opt.ID, opt.Metrics),
		req:     newRequester(a, ctx, log, opt.Metrics, opt.Codec),
	}

	go a.loop(hc)
	return a
}

func (a *BaseActor) ID() string { return a.id }

func (a *BaseActor) String() string { return a.id }

// Signatures returns the signatures declared by the actor's handler.
func (a *BaseActor) Signatures() *ds.Set[Signature] { return a.handler.Signatures() }

// Done is closed when the actor stops.
func (a *BaseActor) Done() <-chan struct{} { return a.done }

// Stop requests shutdown and waits for completion. It is idempotent.
func (a *BaseActor) Stop() {
	select {
	case a.control <- ctrlMsg{kind: ctrlStop}:
	default:
	}
	a.mb.stopOnce.Do(func() { close(a.mb.stop) })
	<-a.done
}

// Send enqueues an envelope (blocking until enqueued, ctx canceled, or actor stopped).
func (a *BaseActor) Send(ctx context.Context, env Envelope) error {
	if err := a.mb.put(ctx, env); err != nil {
		return err
	}
	a.metrics.MailboxDepth(a.id, a.mb.depth())
	return nil
}

// Pause prevents further processing until Resume or Step.
func (a *BaseActor) Pause() error { return a.sendCtrl(ctrlPause) }

// Resume enables continuous processing (disables step mode).
func (a *BaseActor) Resume() error { return a.sendCtrl(ctrlResume) }

// EnableStepMode makes the actor process only when Step() is called.
func (a *BaseActor) EnableStepMode() error { return a.sendCtrl(ctrlEnableStep) }

// Step permits exactly one envelope to be processed.
func (a *BaseActor) Step() error { return a.sendCtrl(ctrlStep) }

// ---- internals ----

func (a *BaseActor) sendCtrl(k ctrlKind) error {
	select {
	case <-a.mb.stop:
		return ErrActorStopped
	default:
	}
	select {
	case <-a.mb.stop:
		return ErrActorStopped
	case a.control <- ctrlMsg{kind: k}:
		return nil
	}
}

// loopState is the execution state; it lives only in the loop goroutine.
type loopState struct {
	paused   bool
	stepMode bool
	permit   int // when >0, actor may process one envelope; in run mode we auto-renew

	// stash holds ordinary messages received while an Await is outstanding.
	stash []Envelope
}

// apply reports false if c asks the loop to stop.
func (s *loopState) apply(c ctrlMsg) bool {
	switch c.kind {
	case ctrlStop:
		return false
	case ctrlPause:
		s.paused = true
		s.permit = 0
	case ctrlResume:
		s.paused = false
		s.stepMode = false
		if s.permit == 0 {
			s.permit = 1
		}
	case ctrlEnableStep:
		s.stepMode = true
		s.paused = true
		s.permit = 0
	case ctrlStep:
		s.permit++
	}
	return true
}

func (a *BaseActor) loop(hc *handlerCtx) {
	st := &loopState{permit: 1}

	defer close(a.done)
	defer a.shutdown(hc, st)

	drainControl := func() bool {
		for {
			select {
			case <-a.mb.stop:
				return false
			case c := <-a.control:
				if !st.apply(c) {
					return false
				}
			default:
				return true
			}
		}
	}

	hc.begin(Envelope{})
	if err := a.handler.InitHandler(hc); err != nil {
		a.log.Error("actor init failed", slog.Any("error", err))
		return
	}

	for {
		// Always prioritize control.
		if ok := drainControl(); !ok {
			return
		}
		if hc.Err() != nil {
			return
		}

		// If no permit, block until a control message (or stop).
		if st.permit <= 0 {
			select {
			case <-a.mb.stop:
				return
			case <-hc.Done():
				return
			case c := <-a.control:
				if !st.apply(c) {
					return
				}
			}
			continue
		}

		env, ok := a.next(hc, st)
		if !ok {
			// preempted by control, or nothing to do
			continue
		}

		st.permit--
		a.process(hc, st, env)

		// Auto-renew permit in continuous mode after handling one envelope.
		if !st.paused && !st.stepMode {
			st.permit++
		}
	}
}

// next picks the next unit of work: resolutions produced in the previous
// turn, then stashed messages once no Await is outstanding, then the
// mailbox (high lane first). It blocks only on the mailbox.
func (a *BaseActor) next(hc *handlerCtx, st *loopState) (Envelope, bool) {
	if env, ok := hc.req.popLocal(); ok {
		return env, true
	}
	if !hc.req.awaiting() && len(st.stash) > 0 {
		env := st.stash[0]
		st.stash = st.stash[1:]
		return env, true
	}
	if env, ok := a.mb.tryGet(); ok {
		return env, true
	}

	select {
	case <-a.mb.stop:
	case <-hc.Done():
	case c := <-a.control:
		if !st.apply(c) {
			a.mb.stopOnce.Do(func() { close(a.mb.stop) })
		}
	case env := <-a.mb.high:
		return env, true
	case env := <-a.mb.normal:
		return env, true
	}
	return Envelope{}, false
}

func (a *BaseActor) process(hc *handlerCtx, st *loopState, env Envelope) {
	if env.ID.IsResponse() {
		// Continuations run with a context that has no reply to claim.
		hc.begin(Envelope{ID: env.ID, Type: env.Type})
		a.contain(env, func() error {
			hc.req.resolve(env)
			return nil
		})
		return
	}
	if hc.req.awaiting() {
		st.stash = append(st.stash, env)
		return
	}

	hc.begin(env)
	timer := a.metrics.MessageDuration(env.Type)
	var res any
	err := a.contain(env, func() (err error) {
		res, err = a.handler.HandleMessage(hc, env)
		return err
	})
	timer.ObserveDuration()
	a.metrics.MessageProcessed(env.Type, err == nil)

	if p := hc.promise; p != nil {
		// a failed handler still answers, unless the promise already did
		if err == nil || p.Swap(true) {
			return
		}
		res = nil
	}
	_ = sendReply(hc, a.log, a.id, env, res, err)
}

// contain runs f with crash containment; a panic is reported to OnPanic
// and returned as an error so the requester still gets an answer.
func (a *BaseActor) contain(env Envelope, f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.metrics.MessagePanic(env.Type)
			if a.onPanic != nil {
				a.onPanic(r, debug.Stack(), env)
			}
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return f()
}

// shutdown closes the mailbox, answers requests still stashed or queued,
// retires the actor's own outstanding requests and cancels its context.
func (a *BaseActor) shutdown(hc *handlerCtx, st *loopState) {
	rest := append(st.stash, a.mb.close()...)
	st.stash = nil

	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), shutdownReplyTimeout)
	rejectQueued(ctx, a.log, a.id, rest)
	cancel()

	hc.req.abort()
	a.cancel()
	a.metrics.MailboxDepth(a.id, 0)
	a.log.Debug("actor stopped", slog.Int("rejected", len(rest)))
}

// sendReply answers req with res or err. Messages that are not requests,
// or have no sender, get no reply.
func sendReply(ctx context.Context, log *slog.Logger, self string, req Envelope, res any, err error) error {
	if !req.ID.IsRequest() || req.Sender == nil {
		return nil
	}

	resp := Envelope{
		ID:          req.ID.ResponseID(),
		Type:        req.Type,
		ContentType: req.ContentType,
	}
	switch {
	case err != nil:
		resp.Err = &RemoteError{Actor: self, MsgType: req.Type, Err: err}
	case !isNilValue(res):
		data, mErr := codec.Marshal(req.ContentType, res)
		if mErr != nil {
			resp.Err = &RemoteError{Actor: self, MsgType: req.Type, Err: fmt.Errorf("encode reply: %w", mErr)}
		} else {
			resp.Data = data
		}
	}
	return deliverReply(ctx, log, req.Sender, resp)
}

func deliverReply(ctx context.Context, log *slog.Logger, to Ref, resp Envelope) error {
	if err := to.Send(ctx, resp); err != nil {
		log.Debug("reply not delivered",
			slog.String("to", to.ID()),
			slog.String("id", resp.ID.String()),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

var _ Actor = (*BaseActor)(nil)
