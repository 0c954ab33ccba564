package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/can_slcan_bridge/cmd/bridge/internal/can"
	"github.com/example/can_slcan_bridge/cmd/bridge/internal/slcan"
)

// Transport is the byte-oriented link to the host. Read must not block
// indefinitely when no data is available: serial ports are expected to
// be configured with a read timeout so that Read returns (0, nil) on a
// quiet line.
type Transport interface {
	io.Reader
	io.Writer
}

// Bridge moves frames between an open CAN session and an SLCAN host on
// the serial transport.
//
// The session's receive handler runs in the controller's notification
// context and only performs a non-blocking enqueue; when the bounded
// queue is full the frame is dropped. Two goroutines do the real work:
// one drains the queue, encodes and writes to the host, the other reads
// host bytes and drives the command parser.
type Bridge struct {
	cfg Config

	session   can.Session
	transport Transport
	state     *slcan.State
	parser    *slcan.Parser

	rxQueue chan can.Frame
	dropped atomic.Uint64

	writeMu sync.Mutex

	logger Logger
}

// New creates a bridge over an already-open CAN session and host
// transport. cfg.BusBitrate seeds the reported channel bitrate.
func New(cfg Config, session can.Session, transport Transport) (*Bridge, error) {
	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 50
	}

	b := &Bridge{
		cfg:       cfg,
		session:   session,
		transport: transport,
		state:     slcan.NewState(),
		rxQueue:   make(chan can.Frame, depth),
		logger:    logger,
	}
	b.state.SetBitrate(cfg.BusBitrate)
	b.parser = slcan.NewParser(b.state, b.transmitFrame)
	return b, nil
}

// State exposes the channel state, mainly for tests.
func (b *Bridge) State() *slcan.State {
	return b.state
}

// Run starts frame reception and serves both directions until the
// context is cancelled or a task fails.
func (b *Bridge) Run(ctx context.Context) error {
	b.session.SetReceiveHandler(b.onFrameReceived)
	if err := b.session.Enable(); err != nil {
		return fmt.Errorf("enable CAN session: %w", err)
	}
	defer b.session.Disable()

	b.logger.Infof("bridge running at %d bit/s", b.state.Bitrate())

	errCh := make(chan error, 2)

	go func() {
		errCh <- b.drainFrames(ctx)
	}()

	go func() {
		errCh <- b.serveHost(ctx)
	}()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Infof("context cancelled")
			return nil
		case err := <-errCh:
			return err
		case <-statsTicker.C:
			if n := b.dropped.Swap(0); n > 0 {
				b.logger.Debugf("receive queue overflow: %d frames dropped", n)
			}
		}
	}
}

// onFrameReceived runs in the controller's notification context on
// every frame arrival. It must not block: a full queue loses the frame.
func (b *Bridge) onFrameReceived() {
	frame, ok := b.session.TryReceive()
	if !ok {
		return
	}
	select {
	case b.rxQueue <- frame:
	default:
		b.dropped.Add(1)
	}
}

// drainFrames forwards queued frames to the host in arrival order.
func (b *Bridge) drainFrames(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-b.rxQueue:
			line, ok := slcan.EncodeFrame(frame, b.state)
			if !ok {
				// Channel logically closed: frames are dropped,
				// not buffered.
				continue
			}
			if err := b.writeHost([]byte(line)); err != nil {
				b.logger.Warnf("host write failed: %v", err)
			}
		}
	}
}

// serveHost reads serial bytes, feeds the command parser and writes
// the responses back.
func (b *Bridge) serveHost(ctx context.Context) error {
	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := b.transport.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("host read: %w", err)
		}
		if n == 0 {
			continue
		}
		if resp := b.parser.Feed(buf[:n]); len(resp) > 0 {
			if err := b.writeHost(resp); err != nil {
				b.logger.Warnf("host write failed: %v", err)
			}
		}
	}
}

// transmitFrame hands a decoded host frame to the bus.
func (b *Bridge) transmitFrame(frame can.Frame) error {
	if err := b.session.Transmit(frame); err != nil {
		b.logger.Warnf("transmit rejected: %v", err)
		return err
	}
	return nil
}

func (b *Bridge) writeHost(data []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_, err := b.transport.Write(data)
	return err
}

// DroppedFrames returns the number of frames lost to queue overflow
// since the counter was last reset by the stats logger.
func (b *Bridge) DroppedFrames() uint64 {
	return b.dropped.Load()
}
