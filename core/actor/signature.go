package actor

import (
	"fmt"

	"github.com/VenturaDelMonte/actor-framework/core/ds"
)

// wildcard matches any message type in a Signature. It is what
// DefaultHandler registers.
const wildcard = "*"

// Signature is one (input, output) pair an actor declares it handles.
type Signature struct {
	In  string `json:"in"`
	Out string `json:"out"`
}

func (s Signature) String() string { return fmt.Sprintf("%s -> %s", s.In, s.Out) }

// SignatureFor returns the signature of a handler taking IN and replying OUT.
func SignatureFor[IN, OUT any]() Signature {
	return Signature{In: msgTypeFor[IN](), Out: msgTypeFor[OUT]()}
}

func (s Signature) matches(other Signature) bool {
	return (s.In == wildcard || s.In == other.In) && (s.Out == wildcard || s.Out == other.Out)
}

// accepts reports whether sigs contains a signature matching want.
func accepts(sigs *ds.Set[Signature], want Signature) bool {
	if sigs == nil {
		return false
	}
	if sigs.Contains(want) {
		return true
	}
	return sigs.ContainsFunc(func(s Signature) bool { return s.matches(want) })
}

// acceptsInput reports whether sigs handles msgType regardless of reply type.
func acceptsInput(sigs *ds.Set[Signature], msgType string) bool {
	if sigs == nil {
		return false
	}
	return sigs.ContainsFunc(func(s Signature) bool { return s.In == wildcard || s.In == msgType })
}
