// Package slcan implements the ASCII serial line CAN (SLCAN) protocol
// spoken by host tools such as SavvyCAN: the frame codec and the
// command dispatcher.
package slcan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/can_slcan_bridge/cmd/bridge/internal/can"
)

// ErrBadFrameCommand is returned when a t/T/r/R command line cannot be
// decoded into a CAN frame.
var ErrBadFrameCommand = errors.New("slcan: malformed frame command")

// EncodeFrame converts a CAN frame into its ASCII SLCAN line. When the
// logical channel is closed no output is produced and ok is false; the
// frame is meant to be dropped, not buffered.
func EncodeFrame(frame can.Frame, state *State) (line string, ok bool) {
	if !state.Open() {
		return "", false
	}

	var builder strings.Builder
	switch {
	case frame.RTR && frame.Extended:
		builder.WriteByte('R')
	case frame.RTR && !frame.Extended:
		builder.WriteByte('r')
	case !frame.RTR && frame.Extended:
		builder.WriteByte('T')
	default:
		builder.WriteByte('t')
	}

	if frame.Extended {
		builder.WriteString(fmt.Sprintf("%08X", frame.ID&can.MaxExtendedID))
	} else {
		builder.WriteString(fmt.Sprintf("%03X", frame.ID&can.MaxStandardID))
	}

	dlc := frame.DLC
	if dlc > can.MaxDLC {
		dlc = can.MaxDLC
	}
	builder.WriteByte('0' + dlc)

	if !frame.RTR {
		for i := uint8(0); i < dlc; i++ {
			builder.WriteString(fmt.Sprintf("%02X", frame.Data[i]))
		}
	}

	if state.Timestamp() {
		builder.WriteString(encodeTimestamp())
	}

	builder.WriteByte('\r')
	return builder.String(), true
}

// encodeTimestamp renders the optional 4-digit timestamp field. The
// value is fixed at zero; this bridge does not implement a frame clock.
func encodeTimestamp() string {
	return "0000"
}

// DecodeFrame parses a t/T/r/R transmit command line (terminator
// already stripped) into a CAN frame.
func DecodeFrame(line string) (can.Frame, error) {
	if line == "" {
		return can.Frame{}, fmt.Errorf("%w: empty line", ErrBadFrameCommand)
	}

	var frame can.Frame
	switch line[0] {
	case 't':
	case 'T':
		frame.Extended = true
	case 'r':
		frame.RTR = true
	case 'R':
		frame.Extended = true
		frame.RTR = true
	default:
		return can.Frame{}, fmt.Errorf("%w: unexpected command %q", ErrBadFrameCommand, line[0])
	}

	idDigits := 3
	if frame.Extended {
		idDigits = 8
	}
	if len(line) < 1+idDigits+1 {
		return can.Frame{}, fmt.Errorf("%w: truncated header", ErrBadFrameCommand)
	}

	id, err := parseHex(line[1 : 1+idDigits])
	if err != nil {
		return can.Frame{}, err
	}
	frame.ID = id

	dlcChar := line[1+idDigits]
	if dlcChar < '0' || dlcChar > '8' {
		return can.Frame{}, fmt.Errorf("%w: invalid DLC %q", ErrBadFrameCommand, dlcChar)
	}
	frame.DLC = dlcChar - '0'

	if !frame.RTR {
		dataStart := 1 + idDigits + 1
		if len(line) < dataStart+2*int(frame.DLC) {
			return can.Frame{}, fmt.Errorf("%w: truncated data", ErrBadFrameCommand)
		}
		for i := 0; i < int(frame.DLC); i++ {
			b, err := parseHex(line[dataStart+2*i : dataStart+2*i+2])
			if err != nil {
				return can.Frame{}, err
			}
			frame.Data[i] = uint8(b)
		}
	}

	if err := frame.Validate(); err != nil {
		return can.Frame{}, fmt.Errorf("%w: %v", ErrBadFrameCommand, err)
	}
	return frame, nil
}

func parseHex(s string) (uint32, error) {
	var v uint32
	for i := 0; i < len(s); i++ {
		n, ok := hexNibble(s[i])
		if !ok {
			return 0, fmt.Errorf("%w: invalid hex digit %q", ErrBadFrameCommand, s[i])
		}
		v = v<<4 | uint32(n)
	}
	return v, nil
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
