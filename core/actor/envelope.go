package actor

// timeoutMsgType marks the self-addressed envelope a request timeout produces.
const timeoutMsgType = "actor/timeout"

// Envelope wraps a message for delivery to an actor's mailbox.
type Envelope struct {
	ID          MessageID // 0 for plain messages, request id or response id otherwise
	Type        string    // message type name for handler dispatch
	ContentType string    // codec the payload was encoded with
	Data        []byte    // encoded payload
	Sender      Ref       // where responses go; nil for anonymous messages
	Err         error     // set on responses that carry a failure
}

func (e Envelope) isTimeout() bool { return e.ID.IsResponse() && e.Type == timeoutMsgType }
