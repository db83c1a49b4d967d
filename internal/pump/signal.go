package pump

// In-band software flow control bytes.
const (
	XON  byte = 0x11 // DC1, resume transmission
	XOFF byte = 0x13 // DC3, stop transmission
)

// inboxSize bounds the flow-control bytes waiting to be written.
const inboxSize = 4

// Peer delivers a flow-control byte to the pump running the opposite
// direction. Signal must not block; it reports whether the byte was
// accepted.
type Peer interface {
	Signal(b byte) bool
}

// Inbox queues flow-control bytes for the pump that owns it. Other pumps
// hold it only as a Peer.
type Inbox struct {
	ch chan byte
}

// NewInbox creates an empty inbox
func NewInbox() *Inbox {
	return &Inbox{ch: make(chan byte, inboxSize)}
}

// Signal queues b without blocking. It returns false when the inbox is full.
func (i *Inbox) Signal(b byte) bool {
	select {
	case i.ch <- b:
		return true
	default:
		return false
	}
}

// next returns the oldest queued byte, if any.
func (i *Inbox) next() (byte, bool) {
	select {
	case b := <-i.ch:
		return b, true
	default:
		return 0, false
	}
}

// SignalName names a flow-control byte for logs and metrics
func SignalName(b byte) string {
	switch b {
	case XON:
		return "xon"
	case XOFF:
		return "xoff"
	default:
		return "unknown"
	}
}
