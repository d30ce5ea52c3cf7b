package actor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/VenturaDelMonte/actor-framework/core/ds"
	"github.com/VenturaDelMonte/actor-framework/internal/codec"
)

type ScopedOptions struct {
	// ID identifies the scoped actor. Defaults to a random id.
	ID          string
	MailboxSize int
	Context     context.Context
	Logger      *slog.Logger
	Metrics     ActorMetrics
	// Codec is the content type used for outgoing requests. Defaults to JSON.
	Codec string
}

// Scoped is a blocking actor owned by a plain goroutine, for code that is
// not itself an actor (main, tests, HTTP handlers). It has a mailbox so it
// can be addressed as a requester, but it runs no handlers and declares no
// signatures.
//
// Only Send, ID, Signatures and Done may be used from other goroutines.
type Scoped struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	mb  *mailbox
	req *requester

	// stash holds non-response messages that arrived while waiting.
	stash []Envelope

	closeOnce sync.Once
	done      chan struct{}
}

func NewScoped(opt ScopedOptions) *Scoped {
	if opt.ID == "" {
		opt.ID = "scoped-" + gonanoid.Must(10)
	}
	if opt.MailboxSize == 0 {
		opt.MailboxSize = 64
	}
	if opt.Context == nil {
		opt.Context = context.Background()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Metrics == nil {
		opt.Metrics = NopActorMetrics()
	}

	log := opt.Logger.With(slog.String("actor", opt.ID))
	if _, err := codec.Lookup(opt.Codec); err != nil {
		log.Warn("falling back to json codec", slog.String("codec", opt.Codec), slog.Any("error", err))
		opt.Codec = codec.ContentTypeJSON
	}

	ctx, cancel := context.WithCancel(opt.Context)
	s := &Scoped{
		id:     opt.ID,
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		mb:     newMailbox(opt.MailboxSize),
		done:   make(chan struct{}),
	}
	s.req = newRequester(s, ctx, log, opt.Metrics, opt.Codec)
	return s
}

func (s *Scoped) ID() string { return s.id }

func (s *Scoped) String() string { return s.id }

// Signatures is always empty: a scoped actor only receives responses.
func (s *Scoped) Signatures() *ds.Set[Signature] { return ds.NewSet[Signature]() }

func (s *Scoped) Send(ctx context.Context, env Envelope) error { return s.mb.put(ctx, env) }

func (s *Scoped) Done() <-chan struct{} { return s.done }

// Close stops the scoped actor. Outstanding requests are abandoned and
// requests queued in its mailbox are answered with ErrDeliveryFailed.
func (s *Scoped) Close() {
	s.closeOnce.Do(func() {
		rest := append(s.stash, s.mb.close()...)
		s.stash = nil

		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), shutdownReplyTimeout)
		rejectQueued(ctx, s.log, s.id, rest)
		cancel()

		s.req.abort()
		s.cancel()
		close(s.done)
	})
}

// Next returns the next message that is not a response, resolving any
// responses that arrive before it.
func (s *Scoped) Next(ctx context.Context) (Envelope, error) {
	for {
		if env, ok := s.req.popLocal(); ok {
			s.req.resolve(env)
			continue
		}
		if len(s.stash) > 0 {
			env := s.stash[0]
			s.stash = s.stash[1:]
			return env, nil
		}
		env, err := s.receive(ctx)
		if err != nil {
			return Envelope{}, err
		}
		if env.ID.IsResponse() {
			s.req.resolve(env)
			continue
		}
		return env, nil
	}
}

// waitFor processes the mailbox until e is resolved. Responses to other
// requests are resolved along the way; everything else is stashed.
func (s *Scoped) waitFor(ctx context.Context, e *pendingEntry) error {
	for e.state != entryResolved {
		if env, ok := s.req.popLocal(); ok {
			s.req.resolve(env)
			continue
		}
		env, err := s.receive(ctx)
		if err != nil {
			return err
		}
		if env.ID.IsResponse() {
			s.req.resolve(env)
			continue
		}
		s.stash = append(s.stash, env)
	}
	return nil
}

func (s *Scoped) receive(ctx context.Context) (Envelope, error) {
	if env, ok := s.mb.tryGet(); ok {
		return env, nil
	}
	select {
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case <-s.ctx.Done():
		return Envelope{}, ErrActorStopped
	case <-s.mb.stop:
		return Envelope{}, ErrActorStopped
	case env := <-s.mb.high:
		return env, nil
	case env := <-s.mb.normal:
		return env, nil
	}
}

// Request sends a dynamically typed request and waits for its reply. It
// is a shorthand for BlockingRequestAny followed by Receive.
func (s *Scoped) Request(ctx context.Context, target Ref, payload any, timeout time.Duration) (any, error) {
	h, err := BlockingRequestAny(s, target, payload, WithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	out, err := h.Receive(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return *out, nil
}

var _ Ref = (*Scoped)(nil)
