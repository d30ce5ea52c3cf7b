package actor

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResponse is the class of outcomes where a request produced no reply.
	// Both ErrRequestTimeout and ErrDeliveryFailed match it with errors.Is.
	ErrNoResponse = errors.New("no response")

	// ErrRequestTimeout resolves a request whose timeout fired before a reply.
	ErrRequestTimeout = fmt.Errorf("%w: request timed out", ErrNoResponse)

	// ErrDeliveryFailed resolves a request that could not reach its target.
	ErrDeliveryFailed = fmt.Errorf("%w: delivery failed", ErrNoResponse)

	ErrActorStopped = errors.New("actor stopped")

	// Usage errors, reported before anything is enqueued.
	ErrEmptyPayload      = errors.New("empty payload")
	ErrSignatureMismatch = errors.New("receiver does not accept message")
	ErrNilRef            = errors.New("nil actor ref")

	// ErrHandleConsumed is returned when a response handle is used twice.
	ErrHandleConsumed = errors.New("response handle already consumed")

	ErrPromiseDelivered = errors.New("response promise already delivered")
)

// RemoteError carries a handler failure back to the requester as data.
type RemoteError struct {
	Actor   string // id of the actor whose handler failed
	MsgType string
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("actor %s failed handling %s: %v", e.Actor, e.MsgType, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// outcomeOf maps a resolution error to the metric label used for it.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "reply"
	case errors.Is(err, ErrRequestTimeout):
		return "timeout"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	default:
		return "error"
	}
}
