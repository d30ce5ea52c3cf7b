package actor

import "fmt"

// Priority is an advisory delivery tag. Mailboxes drain high-priority
// envelopes before normal ones; nothing else interprets it.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

// MessageID correlates a request with its response.
//
// Layout (most significant bit first):
//
//	bit 63     response flag
//	bit 62     high priority flag
//	bits 0-61  sequence number, 0 for plain (non-request) messages
type MessageID uint64

const (
	responseFlag     MessageID = 1 << 63
	highPriorityFlag MessageID = 1 << 62
	seqMask          MessageID = highPriorityFlag - 1
)

// Seq returns the sequence number part of the id.
func (id MessageID) Seq() uint64 { return uint64(id & seqMask) }

// IsResponse reports whether id addresses a response (or a timeout for one).
func (id MessageID) IsResponse() bool { return id&responseFlag != 0 }

// IsRequest reports whether id belongs to a request that expects a reply.
func (id MessageID) IsRequest() bool { return !id.IsResponse() && id.Seq() != 0 }

func (id MessageID) Priority() Priority {
	if id&highPriorityFlag != 0 {
		return PriorityHigh
	}
	return PriorityNormal
}

// ResponseID returns the id the reply to this request is tagged with.
func (id MessageID) ResponseID() MessageID { return id | responseFlag }

// RequestID strips the response flag.
func (id MessageID) RequestID() MessageID { return id &^ responseFlag }

func (id MessageID) String() string {
	kind := "msg"
	switch {
	case id.IsResponse():
		kind = "res"
	case id.IsRequest():
		kind = "req"
	}
	return fmt.Sprintf("%s#%d/%s", kind, id.Seq(), id.Priority())
}

func newMessageID(seq uint64, p Priority) MessageID {
	id := MessageID(seq) & seqMask
	if p == PriorityHigh {
		id |= highPriorityFlag
	}
	return id
}

// idAllocator mints request ids for one actor. It is owned by the actor's
// own execution context and needs no synchronization.
type idAllocator struct {
	seq uint64
}

// next returns an id distinct from every id previously returned by a.
func (a *idAllocator) next(p Priority) MessageID {
	a.seq++
	if MessageID(a.seq)&seqMask == 0 {
		// wrapped; 0 is reserved for plain messages
		a.seq = 1
	}
	return newMessageID(a.seq, p)
}
