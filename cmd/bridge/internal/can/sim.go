package can

import "sync"

// SimDevice is an in-memory CAN controller for tests and bench setups.
// Frames injected with Inject are observed only by a session whose
// configured bitrate matches the simulated bus bitrate, which makes the
// device usable as a bitrate-detection target.
type SimDevice struct {
	mu         sync.Mutex
	busBitrate uint32
	session    *simSession

	transmitted []Frame
	opened      []uint32

	// OpenErr, when set, makes every Open attempt fail with it.
	OpenErr error
	// TxFull, when set, makes Transmit fail with ErrTxQueueFull.
	TxFull bool
}

// NewSimDevice creates a simulated controller attached to a bus running
// at the given bitrate.
func NewSimDevice(busBitrate uint32) *SimDevice {
	return &SimDevice{busBitrate: busBitrate}
}

// Open claims the controller for a single session.
func (d *SimDevice) Open(cfg SessionConfig) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if d.session != nil {
		return nil, ErrBusy
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 1
	}
	s := &simSession{
		dev:   d,
		cfg:   cfg,
		rx:    make([]Frame, 0, depth),
		depth: depth,
	}
	d.session = s
	d.opened = append(d.opened, cfg.Bitrate)
	return s, nil
}

// OpenedBitrates returns the bitrate of every session opened so far,
// in order. Useful for asserting probe sequences.
func (d *SimDevice) OpenedBitrates() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint32, len(d.opened))
	copy(out, d.opened)
	return out
}

// Inject delivers a frame as live bus traffic. The frame reaches the
// open session only if the session is enabled and configured at the
// bus bitrate; otherwise it is lost, as a wrong-speed receiver would
// see only bit errors.
func (d *SimDevice) Inject(f Frame) {
	d.mu.Lock()
	s := d.session
	d.mu.Unlock()
	if s == nil {
		return
	}
	s.deliver(f, d.busBitrate)
}

// Transmitted drains and returns every frame submitted for
// transmission on any session of the device.
func (d *SimDevice) Transmitted() []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.transmitted
	d.transmitted = nil
	return out
}

type simSession struct {
	dev   *SimDevice
	cfg   SessionConfig
	depth int

	mu      sync.Mutex
	enabled bool
	closed  bool
	handler func()
	rx      []Frame
}

func (s *simSession) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.enabled = true
	return nil
}

func (s *simSession) Disable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.enabled = false
	return nil
}

func (s *simSession) SetReceiveHandler(fn func()) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

func (s *simSession) TryReceive() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rx) == 0 {
		return Frame{}, false
	}
	f := s.rx[0]
	s.rx = s.rx[1:]
	return f, true
}

func (s *simSession) Transmit(f Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.cfg.ListenOnly {
		s.mu.Unlock()
		return ErrListenOnly
	}
	s.mu.Unlock()

	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.dev.TxFull {
		return ErrTxQueueFull
	}
	s.dev.transmitted = append(s.dev.transmitted, f)
	return nil
}

func (s *simSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.enabled = false
	s.mu.Unlock()

	s.dev.mu.Lock()
	if s.dev.session == s {
		s.dev.session = nil
	}
	s.dev.mu.Unlock()
	return nil
}

func (s *simSession) deliver(f Frame, busBitrate uint32) {
	s.mu.Lock()
	if !s.enabled || s.closed || s.cfg.Bitrate != busBitrate {
		s.mu.Unlock()
		return
	}
	if len(s.rx) < s.depth {
		s.rx = append(s.rx, f)
	}
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler()
	}
}
