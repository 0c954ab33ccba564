package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/can_slcan_bridge/cmd/bridge/internal/can"
)

// DefaultCandidates lists the bitrates probed during auto-detection,
// most common first to minimise expected detection latency.
var DefaultCandidates = []uint32{125000, 250000, 500000, 1000000, 100000, 50000}

var (
	// ErrDetectionFailed means every candidate timed out without
	// observing traffic. The bus may simply be silent.
	ErrDetectionFailed = errors.New("no CAN traffic detected at any candidate bitrate")
	// ErrNoUsableSession means every candidate failed before probing
	// could start, which points at a hardware or pin configuration
	// problem rather than a silent bus.
	ErrNoUsableSession = errors.New("no candidate bitrate yielded a usable probe session")
)

// DetectOptions tunes one auto-detection pass.
type DetectOptions struct {
	Candidates          []uint32
	PerCandidateTimeout time.Duration
	PollInterval        time.Duration
	SettleDelay         time.Duration
	TXPin               int
	RXPin               int
}

func (o DetectOptions) withDefaults() DetectOptions {
	if len(o.Candidates) == 0 {
		o.Candidates = DefaultCandidates
	}
	if o.PerCandidateTimeout <= 0 {
		o.PerCandidateTimeout = 2 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Millisecond
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 100 * time.Millisecond
	}
	return o
}

// Detector discovers the bitrate of a live CAN bus by opening short
// listen-only sessions at each candidate rate and watching for valid
// traffic. Probing never transmits, so a wrong-speed attempt cannot
// disturb the bus.
type Detector struct {
	dev    can.Device
	logger Logger
}

// NewDetector creates a detector driving the given controller.
func NewDetector(dev can.Device, logger Logger) *Detector {
	return &Detector{dev: dev, logger: logger}
}

// Detect runs one detection pass over the candidate list and returns
// the first bitrate at which a valid frame was observed. The pass is
// not retried internally; on ErrDetectionFailed the caller decides
// whether to run another.
func (d *Detector) Detect(ctx context.Context, opts DetectOptions) (uint32, error) {
	opts = opts.withDefaults()

	hwFailures := 0
	var lastHWErr error

	for _, bitrate := range opts.Candidates {
		observed, err := d.probe(ctx, bitrate, opts)
		if err != nil {
			if ctx.Err() != nil {
				return 0, err
			}
			// A session that cannot be opened is an operational
			// problem, not absent traffic: skip to the next
			// candidate without consuming a timeout window.
			d.logger.Warnf("probe at %d bit/s failed: %v", bitrate, err)
			hwFailures++
			lastHWErr = err
			continue
		}
		if observed {
			d.logger.Infof("valid frame detected at %d bit/s", bitrate)
			return bitrate, nil
		}
		d.logger.Infof("no frames at %d bit/s within %s", bitrate, opts.PerCandidateTimeout)

		// Let the controller fully release the bus before the next
		// attempt reconfigures the timing.
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(opts.SettleDelay):
		}
	}

	if hwFailures == len(opts.Candidates) {
		return 0, fmt.Errorf("%w: %v", ErrNoUsableSession, lastHWErr)
	}
	return 0, ErrDetectionFailed
}

// probe opens a listen-only session at the given bitrate and waits up
// to the per-candidate timeout for any valid frame.
func (d *Detector) probe(ctx context.Context, bitrate uint32, opts DetectOptions) (bool, error) {
	d.logger.Infof("testing bitrate %d bit/s (timeout %s)", bitrate, opts.PerCandidateTimeout)

	session, err := d.dev.Open(can.SessionConfig{
		TXPin:      opts.TXPin,
		RXPin:      opts.RXPin,
		Bitrate:    bitrate,
		ListenOnly: true,
		QueueDepth: 1,
	})
	if err != nil {
		return false, fmt.Errorf("open probe session: %w", err)
	}
	defer session.Close()

	// One-shot traffic signal, fulfilled at most once no matter how
	// many frames the handler sees.
	seen := make(chan struct{})
	var once sync.Once
	session.SetReceiveHandler(func() {
		if _, ok := session.TryReceive(); ok {
			once.Do(func() { close(seen) })
		}
	})

	if err := session.Enable(); err != nil {
		return false, fmt.Errorf("enable probe session: %w", err)
	}
	defer session.Disable()

	deadline := time.Now().Add(opts.PerCandidateTimeout)
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-seen:
			return true, nil
		case <-time.After(opts.PollInterval):
			if !time.Now().Before(deadline) {
				return false, nil
			}
		}
	}
}
