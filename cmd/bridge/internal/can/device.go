package can

import "errors"

var (
	// ErrBusy is returned by Open while another session holds the pins.
	ErrBusy = errors.New("can: bus pins already in use")
	// ErrListenOnly is returned by Transmit on a listen-only session.
	ErrListenOnly = errors.New("can: session is listen-only")
	// ErrTxQueueFull is returned by Transmit when the hardware transmit
	// queue is saturated.
	ErrTxQueueFull = errors.New("can: transmit queue full")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("can: session closed")
)

// SessionConfig describes a bus session to be opened on a controller.
type SessionConfig struct {
	TXPin      int
	RXPin      int
	Bitrate    uint32
	ListenOnly bool
	QueueDepth int
}

// Device is a CAN controller capable of opening bus sessions. At most
// one session may be open on the same pin pair at a time; Open returns
// ErrBusy while a previous session has not been closed.
type Device interface {
	Open(cfg SessionConfig) (Session, error)
}

// Session is a single open bus session.
//
// The receive handler registered via SetReceiveHandler runs
// synchronously in the controller's frame-arrival context. It must not
// block and must complete quickly; typically it calls TryReceive once
// and hands the frame off without waiting.
type Session interface {
	// Enable starts frame reception (and transmission unless the
	// session is listen-only).
	Enable() error

	// Disable stops the session without releasing the pins.
	Disable() error

	// SetReceiveHandler registers fn to be invoked on every frame
	// arrival. Must be called before Enable.
	SetReceiveHandler(fn func())

	// TryReceive pops at most one pending received frame. It never
	// blocks; ok is false when no frame is pending.
	TryReceive() (f Frame, ok bool)

	// Transmit submits a frame for transmission.
	Transmit(f Frame) error

	// Close disables the session if needed and releases the pins.
	Close() error
}
