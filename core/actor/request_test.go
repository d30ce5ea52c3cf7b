package actor

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newRequesterActor starts an actor that, for every kick, sends query{V: kick.N}
// to target and reports the outcome on the returned channel.
func newRequesterActor(t *testing.T, target TypedRef[query, string], m ActorMetrics, opts ...RequestOption) (Actor, <-chan outcome[string]) {
	t.Helper()
	out := make(chan outcome[string], 16)
	a := newTestActorWithOpts(t, Options{Metrics: m},
		HandleMsg[kick](func(hc HandlerCtx, k kick) error {
			Request(hc, target, query{V: k.N}, opts...).Then(
				func(s *string) { out <- outcome[string]{val: s} },
				func(err error) { out <- outcome[string]{err: err} },
			)
			return nil
		}),
	)
	return a, out
}

func TestRequest_replyBeforeTimeout(t *testing.T) {
	b := newTestActor(t,
		HandleRequest[query, string](func(hc HandlerCtx, q query) (*string, error) {
			time.Sleep(10 * time.Millisecond)
			s := "ok"
			return &s, nil
		}),
	)
	m := newCountingMetrics()
	a, out := newRequesterActor(t, MustAs[query, string](b), m, WithTimeout(100*time.Millisecond))

	require.NoError(t, Tell(t.Context(), a, kick{N: 42}))

	res := recv(t, out)
	require.NoError(t, res.err)
	require.Equal(t, "ok", *res.val)

	// the timer was stopped; nothing else resolves the handle
	noRecv(t, out, 150*time.Millisecond)
	require.Equal(t, 1, m.outcomes("reply"))
	require.Equal(t, 0, m.outcomes("timeout"))
	require.Equal(t, 0, m.orphans())
}

func TestRequest_timeout(t *testing.T) {
	var promise atomic.Pointer[Promise[string]]
	b := newTestActor(t,
		HandleRequest[query, string](func(hc HandlerCtx, q query) (*string, error) {
			// never answer in time
			promise.Store(NewPromise[string](hc))
			return nil, nil
		}),
	)
	m := newCountingMetrics()
	a, out := newRequesterActor(t, MustAs[query, string](b), m, WithTimeout(100*time.Millisecond))

	start := time.Now()
	require.NoError(t, Tell(t.Context(), a, kick{N: 42}))

	res := recv(t, out)
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	require.Nil(t, res.val)
	require.ErrorIs(t, res.err, ErrRequestTimeout)
	require.ErrorIs(t, res.err, ErrNoResponse)
	require.NotErrorIs(t, res.err, ErrDeliveryFailed)

	// a reply after the timeout is dropped without resolving again
	require.Eventually(t, func() bool { return promise.Load() != nil }, time.Second, time.Millisecond)
	s := "late"
	require.NoError(t, promise.Load().Deliver(t.Context(), &s))
	require.Eventually(t, func() bool { return m.orphans() == 1 }, time.Second, 5*time.Millisecond)
	noRecv(t, out, 50*time.Millisecond)
	require.Equal(t, 1, m.outcomes("timeout"))
	require.Equal(t, 0, m.outcomes("reply"))
}

func TestRequest_concurrentRequestsMatchTheirReplies(t *testing.T) {
	b := newTestActor(t, delayedReplier())
	target := MustAs[query, string](b)

	type result struct {
		id  MessageID
		tag string
		val string
	}
	out := make(chan result, 2)

	a := newTestActor(t,
		HandleMsg[kick](func(hc HandlerCtx, k kick) error {
			// the first reply arrives last
			h1 := Request(hc, target, query{V: 1, Delay: 50 * time.Millisecond}, WithTimeout(time.Second))
			h2 := Request(hc, target, query{V: 2}, WithTimeout(time.Second))

			h1.Then(func(s *string) { out <- result{id: h1.ID(), tag: "first", val: *s} }, nil)
			h2.Then(func(s *string) { out <- result{id: h2.ID(), tag: "second", val: *s} }, nil)
			return nil
		}),
	)
	require.NoError(t, Tell(t.Context(), a, kick{}))

	r1 := recv(t, out)
	r2 := recv(t, out)
	require.Equal(t, "second", r1.tag)
	require.Equal(t, "v=2", r1.val)
	require.Equal(t, "first", r2.tag)
	require.Equal(t, "v=1", r2.val)
	require.NotEqual(t, r1.id, r2.id)
}

func TestRequest_noTimeoutWaitsForSlowReply(t *testing.T) {
	b := newTestActor(t, delayedReplier())
	a, out := newRequesterActor(t, MustAs[query, string](b), nil, WithTimeout(NoTimeout))

	require.NoError(t, Tell(t.Context(), a, kick{N: 7}))
	res := recv(t, out)
	require.NoError(t, res.err)
	require.Equal(t, "v=7", *res.val)
}

func TestRequest_negativeTimeoutMeansNoTimeout(t *testing.T) {
	var o requestOpts
	WithTimeout(-time.Second)(&o)
	require.Equal(t, NoTimeout, o.timeout)
}

func TestRequest_abandonedHandle(t *testing.T) {
	b := newTestActor(t, delayedReplier())
	target := MustAs[query, string](b)
	m := newCountingMetrics()
	notes := make(chan int, 1)

	a := newTestActorWithOpts(t, Options{Metrics: m},
		HandleMsg[kick](func(hc HandlerCtx, k kick) error {
			_ = Request(hc, target, query{V: 1, Delay: 20 * time.Millisecond}, WithTimeout(40*time.Millisecond))
			return nil
		}),
		HandleMsg[note](func(hc HandlerCtx, n note) error {
			notes <- n.N
			return nil
		}),
	)

	require.NoError(t, Tell(t.Context(), a, kick{}))
	require.Eventually(t, func() bool { return m.outcomes("reply") == 1 }, time.Second, 5*time.Millisecond)

	// the loop keeps running and the stopped timer never fires
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, Tell(t.Context(), a, note{N: 1}))
	require.Equal(t, 1, recv(t, notes))
	require.Equal(t, 0, m.outcomes("timeout"))
	require.Equal(t, 0, m.orphans())
}

func TestRequest_handlerErrorIsRemoteError(t *testing.T) {
	errBoom := errors.New("boom")
	b := newTestActor(t,
		HandleRequest[query, string](func(hc HandlerCtx, q query) (*string, error) {
			return nil, errBoom
		}),
	)
	m := newCountingMetrics()
	a, out := newRequesterActor(t, MustAs[query, string](b), m)

	require.NoError(t, Tell(t.Context(), a, kick{N: 1}))
	res := recv(t, out)

	var remote *RemoteError
	require.ErrorAs(t, res.err, &remote)
	require.Equal(t, b.ID(), remote.Actor)
	require.Equal(t, msgTypeFor[query](), remote.MsgType)
	require.ErrorIs(t, res.err, errBoom)
	require.NotErrorIs(t, res.err, ErrNoResponse)
	require.Equal(t, 1, m.outcomes("error"))
}

func TestRequest_nilReplyResolvesWithNil(t *testing.T) {
	b := newTestActor(t,
		HandleRequest[query, string](func(hc HandlerCtx, q query) (*string, error) {
			return nil, nil
		}),
	)
	a, out := newRequesterActor(t, MustAs[query, string](b), nil)

	require.NoError(t, Tell(t.Context(), a, kick{}))
	res := recv(t, out)
	require.NoError(t, res.err)
	require.Nil(t, res.val)
}

func TestRequest_stoppedTargetFailsDelivery(t *testing.T) {
	b := New(Options{Context: t.Context()}, TypedHandlers(delayedReplier()))
	target := MustAs[query, string](b)
	b.Stop()

	m := newCountingMetrics()
	a, out := newRequesterActor(t, target, m, WithTimeout(time.Second))

	require.NoError(t, Tell(t.Context(), a, kick{}))
	res := recv(t, out)
	require.ErrorIs(t, res.err, ErrDeliveryFailed)
	require.ErrorIs(t, res.err, ErrNoResponse)
	require.ErrorIs(t, res.err, ErrActorStopped)
	require.NotErrorIs(t, res.err, ErrRequestTimeout)
	require.Equal(t, 1, m.outcomes("delivery_failed"))
}

func TestRequest_zeroTypedRefFailsDelivery(t *testing.T) {
	a, out := newRequesterActor(t, TypedRef[query, string]{}, nil)

	require.NoError(t, Tell(t.Context(), a, kick{}))
	res := recv(t, out)
	require.ErrorIs(t, res.err, ErrDeliveryFailed)
	require.ErrorIs(t, res.err, ErrNilRef)
}

func TestResponseHandle_thenTwice(t *testing.T) {
	b := newTestActor(t, delayedReplier())
	target := MustAs[query, string](b)
	errs := make(chan error, 1)
	vals := make(chan string, 1)

	a := newTestActor(t,
		HandleMsg[kick](func(hc HandlerCtx, k kick) error {
			h := Request(hc, target, query{V: 3})
			h.Then(func(s *string) { vals <- *s }, nil)
			h.Then(func(s *string) { vals <- "again" }, func(err error) { errs <- err })
			return nil
		}),
	)
	require.NoError(t, Tell(t.Context(), a, kick{}))
	require.ErrorIs(t, recv(t, errs), ErrHandleConsumed)
	require.Equal(t, "v=3", recv(t, vals))
	noRecv(t, vals, 20*time.Millisecond)
}

func TestResponseHandle_await(t *testing.T) {
	b := newTestActor(t, delayedReplier())
	target := MustAs[query, string](b)
	order := make(chan string, 8)

	a := newTestActor(t,
		HandleMsg[kick](func(hc HandlerCtx, k kick) error {
			Request(hc, target, query{V: 1, Delay: 50 * time.Millisecond}).Await(
				func(s *string) { order <- *s },
				func(err error) { order <- err.Error() },
			)
			return nil
		}),
		HandleMsg[note](func(hc HandlerCtx, n note) error {
			order <- "note=" + strconv.Itoa(n.N)
			return nil
		}),
	)

	require.NoError(t, Tell(t.Context(), a, kick{}))
	require.NoError(t, Tell(t.Context(), a, note{N: 1}))
	require.NoError(t, Tell(t.Context(), a, note{N: 2}))

	require.Equal(t, "v=1", recv(t, order))
	require.Equal(t, "note=1", recv(t, order))
	require.Equal(t, "note=2", recv(t, order))
}

func TestResponseHandle_thenDoesNotBlock(t *testing.T) {
	b := newTestActor(t, delayedReplier())
	target := MustAs[query, string](b)
	order := make(chan string, 8)

	a := newTestActor(t,
		HandleMsg[kick](func(hc HandlerCtx, k kick) error {
			Request(hc, target, query{V: 1, Delay: 50 * time.Millisecond}).Then(
				func(s *string) { order <- *s },
				nil,
			)
			return nil
		}),
		HandleMsg[note](func(hc HandlerCtx, n note) error {
			order <- "note"
			return nil
		}),
	)

	require.NoError(t, Tell(t.Context(), a, kick{}))
	require.NoError(t, Tell(t.Context(), a, note{}))

	require.Equal(t, "note", recv(t, order))
	require.Equal(t, "v=1", recv(t, order))
}

func TestResponseHandle_awaitTimeoutReleasesStash(t *testing.T) {
	b := newTestActor(t, delayedReplier())
	target := MustAs[query, string](b)
	order := make(chan string, 8)

	a := newTestActor(t,
		HandleMsg[kick](func(hc HandlerCtx, k kick) error {
			Request(hc, target, query{V: 1, Delay: time.Second}, WithTimeout(30*time.Millisecond)).Await(
				func(s *string) { order <- *s },
				func(err error) {
					if errors.Is(err, ErrRequestTimeout) {
						order <- "timeout"
					}
				},
			)
			return nil
		}),
		HandleMsg[note](func(hc HandlerCtx, n note) error {
			order <- "note"
			return nil
		}),
	)

	require.NoError(t, Tell(t.Context(), a, kick{}))
	require.NoError(t, Tell(t.Context(), a, note{}))

	require.Equal(t, "timeout", recv(t, order))
	require.Equal(t, "note", recv(t, order))
}

func TestRequest_chainedThroughPromise(t *testing.T) {
	b := newTestActor(t, delayedReplier())
	target := MustAs[query, string](b)

	// relay forwards ping as a query to b and answers with the reply length
	relay := newTestActor(t,
		HandleRequest[ping, pong](func(hc HandlerCtx, p ping) (*pong, error) {
			promise := NewPromise[pong](hc)
			Request(hc, target, query{V: p.Seq, Delay: 10 * time.Millisecond}).Then(
				func(s *string) { _ = promise.Deliver(hc, &pong{Seq: len(*s)}) },
				func(err error) { _ = promise.Fail(hc, err) },
			)
			return nil, nil
		}),
	)

	s := newTestScoped(t, ScopedOptions{})
	res, err := BlockingRequest(s, MustAs[ping, pong](relay), ping{Seq: 12345}, WithTimeout(time.Second)).Receive(t.Context())
	require.NoError(t, err)
	require.Equal(t, len("v=12345"), res.Seq)
}

func TestRequest_highPriorityOvertakesNormal(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	order := make(chan string, 4)

	b := newTestActor(t,
		HandleMsg[gate](func(hc HandlerCtx, g gate) error {
			close(entered)
			<-release
			return nil
		}),
		HandleMsg[note](func(hc HandlerCtx, n note) error {
			order <- "note"
			return nil
		}),
		HandleRequest[query, string](func(hc HandlerCtx, q query) (*string, error) {
			order <- "query"
			return nil, nil
		}),
	)

	require.NoError(t, Tell(t.Context(), b, gate{}))
	<-entered

	s := newTestScoped(t, ScopedOptions{})
	require.NoError(t, Tell(t.Context(), b, note{}))
	h := BlockingRequest(s, MustAs[query, string](b), query{}, WithPriority(PriorityHigh))
	require.Equal(t, PriorityHigh, h.ID().Priority())
	close(release)

	require.Equal(t, "query", recv(t, order))
	require.Equal(t, "note", recv(t, order))

	_, err := h.Receive(t.Context())
	require.NoError(t, err)
}

func TestRequest_continuationPanicIsContained(t *testing.T) {
	b := newTestActor(t, delayedReplier())
	target := MustAs[query, string](b)
	m := newCountingMetrics()
	notes := make(chan int, 1)

	a := newTestActorWithOpts(t, Options{Metrics: m},
		HandleMsg[kick](func(hc HandlerCtx, k kick) error {
			Request(hc, target, query{}).Then(func(*string) { panic("in continuation") }, nil)
			return nil
		}),
		HandleMsg[note](func(hc HandlerCtx, n note) error {
			notes <- n.N
			return nil
		}),
	)
	require.NoError(t, Tell(t.Context(), a, kick{}))
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.panics == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, Tell(context.Background(), a, note{N: 9}))
	require.Equal(t, 9, recv(t, notes))
}
