// Package actor provides mailbox-based actors that talk to each other with
// typed requests.
//
// Each actor:
//   - Has a unique identity and a set of message signatures it accepts
//   - Processes messages sequentially from its mailbox
//   - Can issue requests and handle their replies without blocking its loop
//   - Can schedule background tasks via [HandlerCtx.Schedule]
//   - Can be paused, resumed, and stepped for debugging/testing
//
// # Creating Actors
//
//	calc := actor.TypedHandlers(
//	    actor.HandleRequest[Add, Sum](func(hc actor.HandlerCtx, m Add) (*Sum, error) {
//	        return &Sum{V: m.A + m.B}, nil
//	    }),
//	    actor.HandleMsg[Reset](func(hc actor.HandlerCtx, m Reset) error {
//	        return nil
//	    }),
//	).ToActor(actor.Options{})
//
// # Typed References
//
// A [TypedRef] is a view of an actor restricted to one signature. It is
// checked once, when created:
//
//	adder, err := actor.As[Add, Sum](calc)
//
// After that, sending anything but Add through adder, or expecting anything
// but Sum back, does not compile.
//
// # Requests
//
// Inside a handler, [Request] returns a [ResponseHandle]. The continuation
// runs later in the same actor's loop:
//
//	actor.Request(hc, adder, Add{A: 1, B: 2}, actor.WithTimeout(time.Second)).
//	    Then(func(s *Sum) { ... }, func(err error) { ... })
//
// Then keeps processing other messages meanwhile. Await instead buffers
// ordinary messages until the reply arrived.
//
// Outside of actors, a [Scoped] actor issues [BlockingRequest] and suspends
// on the handle:
//
//	self := actor.NewScoped(actor.ScopedOptions{})
//	defer self.Close()
//	sum, err := actor.BlockingRequest(self, adder, Add{A: 1, B: 2}).Receive(ctx)
//
// Every request resolves exactly once: with the reply, with
// [ErrRequestTimeout] when its timeout fires first, or with
// [ErrDeliveryFailed] when the target is unreachable. Both failures match
// [ErrNoResponse]. Handler errors arrive as [*RemoteError].
//
// A handler that cannot answer within its turn takes over the reply with
// [NewPromise] and delivers it later.
//
// # Lifecycle Control
//
//	a.Pause()       // Stop processing messages
//	a.Step()        // Process exactly one message
//	a.Resume()      // Continue normal processing
//	a.Stop()        // Shut down; queued requests fail with ErrDeliveryFailed
//	<-a.Done()      // Wait for actor shutdown
package actor
