package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPromise_deliverFromScheduledTask(t *testing.T) {
	a := newTestActor(t, delayedReplier())
	s := newTestScoped(t, ScopedOptions{})

	res, err := BlockingRequest(s, MustAs[query, string](a), query{V: 4, Delay: 10 * time.Millisecond}).Receive(t.Context())
	require.NoError(t, err)
	require.Equal(t, "v=4", *res)
}

func TestPromise_failAndDeliverOnce(t *testing.T) {
	errNotFound := errors.New("not found")
	results := make(chan [2]error, 1)

	a := newTestActor(t,
		HandleRequest[ping, pong](func(hc HandlerCtx, p ping) (*pong, error) {
			promise := NewPromise[pong](hc)
			hc.Schedule(func() {
				if !promise.Pending() {
					return
				}
				first := promise.Fail(hc, errNotFound)
				second := promise.Deliver(hc, &pong{})
				results <- [2]error{first, second}
			})
			// ignored: the promise owns the reply
			return &pong{Seq: 1}, nil
		}),
	)
	s := newTestScoped(t, ScopedOptions{})

	_, err := BlockingRequest(s, MustAs[ping, pong](a), ping{}).Receive(t.Context())
	require.ErrorIs(t, err, errNotFound)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, a.ID(), remote.Actor)

	got := recv(t, results)
	require.NoError(t, got[0])
	require.ErrorIs(t, got[1], ErrPromiseDelivered)
}

func TestPromise_plainMessageIsNoop(t *testing.T) {
	results := make(chan error, 1)
	a := newTestActor(t,
		HandleMsg[note](func(hc HandlerCtx, n note) error {
			results <- NewPromise[Ack](hc).Deliver(hc, nil)
			return nil
		}),
	)
	require.NoError(t, Tell(t.Context(), a, note{}))
	require.NoError(t, recv(t, results))
}

func TestPromise_handlerErrorAnswersClaimedRequest(t *testing.T) {
	errBoom := errors.New("boom")
	promises := make(chan *Promise[pong], 2)

	a := newTestActor(t,
		HandleRequest[ping, pong](func(hc HandlerCtx, p ping) (*pong, error) {
			promise := NewPromise[pong](hc)
			promises <- promise
			if p.Seq == 1 {
				panic("after promise")
			}
			return nil, errBoom
		}),
	)
	s := newTestScoped(t, ScopedOptions{})
	target := MustAs[ping, pong](a)

	_, err := BlockingRequest(s, target, ping{}, WithTimeout(time.Second)).Receive(t.Context())
	require.ErrorIs(t, err, errBoom)
	require.NotErrorIs(t, err, ErrRequestTimeout)

	promise := recv(t, promises)
	require.False(t, promise.Pending())
	require.ErrorIs(t, promise.Deliver(t.Context(), &pong{}), ErrPromiseDelivered)

	_, err = BlockingRequest(s, target, ping{Seq: 1}, WithTimeout(time.Second)).Receive(t.Context())
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Contains(t, remote.Error(), "after promise")
	require.False(t, recv(t, promises).Pending())
}

func TestPromise_deliveredBeforeHandlerErrorWins(t *testing.T) {
	a := newTestActor(t,
		HandleRequest[ping, pong](func(hc HandlerCtx, p ping) (*pong, error) {
			promise := NewPromise[pong](hc)
			if err := promise.Deliver(hc, &pong{Seq: 7}); err != nil {
				return nil, err
			}
			return nil, errors.New("too late")
		}),
	)
	s := newTestScoped(t, ScopedOptions{})
	h := BlockingRequest(s, MustAs[ping, pong](a), ping{}, WithTimeout(time.Second))

	res, err := h.Receive(t.Context())
	require.NoError(t, err)
	require.Equal(t, 7, res.Seq)
}
