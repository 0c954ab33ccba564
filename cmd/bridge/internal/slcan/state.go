package slcan

import "sync/atomic"

// State holds the logical channel state shared between the command
// dispatcher (single writer) and the frame encoder (concurrent reader).
// Fields are independently meaningful, so per-field atomics are enough.
type State struct {
	open      atomic.Bool
	bitrate   atomic.Uint32
	timestamp atomic.Bool
}

// NewState returns a State with the channel closed, no bitrate set and
// timestamps disabled.
func NewState() *State {
	return &State{}
}

// Open reports whether the logical CAN channel is open.
func (s *State) Open() bool { return s.open.Load() }

// SetOpen marks the channel open or closed.
func (s *State) SetOpen(v bool) { s.open.Store(v) }

// Bitrate returns the configured bitrate in bit/s, 0 when unset.
func (s *State) Bitrate() uint32 { return s.bitrate.Load() }

// SetBitrate stores the configured bitrate.
func (s *State) SetBitrate(v uint32) { s.bitrate.Store(v) }

// Timestamp reports whether encoded frames carry a timestamp field.
func (s *State) Timestamp() bool { return s.timestamp.Load() }

// SetTimestamp enables or disables the timestamp field.
func (s *State) SetTimestamp(v bool) { s.timestamp.Store(v) }
