// Package can defines the CAN frame model and the contract of the
// hardware controller the bridge drives.
package can

import (
	"errors"
	"fmt"
)

// Identifier range limits for classical CAN.
const (
	MaxStandardID = 0x7FF
	MaxExtendedID = 0x1FFFFFFF
	MaxDLC        = 8
)

var (
	ErrInvalidID  = errors.New("can: identifier out of range")
	ErrInvalidDLC = errors.New("can: data length code out of range")
)

// Frame represents a single classical CAN (2.0A/2.0B) frame.
//
// For remote (RTR) frames the Data field carries no meaning.
type Frame struct {
	ID       uint32 // 11-bit (standard) or 29-bit (extended)
	Extended bool
	RTR      bool
	DLC      uint8 // 0..8
	Data     [8]byte
}

// Validate returns an error if the frame violates the classical CAN
// identifier or length limits.
func (f Frame) Validate() error {
	if f.DLC > MaxDLC {
		return fmt.Errorf("%w: %d", ErrInvalidDLC, f.DLC)
	}
	max := uint32(MaxStandardID)
	if f.Extended {
		max = MaxExtendedID
	}
	if f.ID > max {
		return fmt.Errorf("%w: 0x%X", ErrInvalidID, f.ID)
	}
	return nil
}
