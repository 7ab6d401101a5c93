package audioio

// MessageType identifies a message sent from a device callback to the control goroutine.
type MessageType string

const (
	// MessagePCMData carries one full capture frame.
	MessagePCMData MessageType = "pcm_data"
	// MessageError reports a failure inside a callback.
	MessageError MessageType = "error"
	// MessageWarning reports a recoverable condition (e.g. playback overflow).
	MessageWarning MessageType = "warning"
)

// Message is the only value that crosses from a device callback to the
// control goroutine. Data is owned by the receiver.
type Message struct {
	Type  MessageType `json:"type"`
	Data  []int16     `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// trySend delivers msg without blocking. It reports whether msg was queued.
func trySend(ch chan<- Message, msg Message) bool {
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}
