package slcan

import (
	"errors"
	"testing"

	"github.com/example/can_slcan_bridge/cmd/bridge/internal/can"
)

func openState() *State {
	s := NewState()
	s.SetOpen(true)
	return s
}

func TestEncodeFrame(t *testing.T) {
	cases := []struct {
		name  string
		frame can.Frame
		want  string
	}{
		{
			"standard data",
			can.Frame{ID: 0x123, DLC: 2, Data: [8]byte{0xAA, 0xBB}},
			"t1232AABB\r",
		},
		{
			"extended empty",
			can.Frame{ID: 0x1ABCDE, Extended: true, DLC: 0},
			"T001ABCDE0\r",
		},
		{
			"standard remote",
			can.Frame{ID: 0x7FF, RTR: true, DLC: 4},
			"r7FF4\r",
		},
		{
			"extended remote",
			can.Frame{ID: 0x1ABCDEF0, Extended: true, RTR: true, DLC: 0},
			"R1ABCDEF00\r",
		},
	}

	state := openState()
	for _, tc := range cases {
		got, ok := EncodeFrame(tc.frame, state)
		if !ok {
			t.Fatalf("%s: encoding refused", tc.name)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %q got %q", tc.name, tc.want, got)
		}
	}
}

func TestEncodeFrameClosedChannel(t *testing.T) {
	state := NewState()
	if line, ok := EncodeFrame(can.Frame{ID: 0x123, DLC: 1}, state); ok || line != "" {
		t.Fatalf("expected no output with a closed channel, got %q", line)
	}
}

func TestEncodeFrameTimestamp(t *testing.T) {
	state := openState()
	state.SetTimestamp(true)

	got, ok := EncodeFrame(can.Frame{ID: 0x123, DLC: 1, Data: [8]byte{0xFF}}, state)
	if !ok {
		t.Fatalf("encoding refused")
	}
	if want := "t1231FF0000\r"; got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestEncodeFrameClampsDLC(t *testing.T) {
	state := openState()
	frame := can.Frame{ID: 0x1, DLC: 12}
	got, ok := EncodeFrame(frame, state)
	if !ok {
		t.Fatalf("encoding refused")
	}
	if got[4] != '8' {
		t.Fatalf("expected DLC clamped to 8, got line %q", got)
	}
}

func TestDecodeFrameRoundTrip(t *testing.T) {
	frames := []can.Frame{
		{ID: 0x123, DLC: 2, Data: [8]byte{0xAA, 0xBB}},
		{ID: 0x1ABCDE, Extended: true, DLC: 0},
		{ID: 0x7FF, RTR: true, DLC: 4},
		{ID: 0x1FFFFFFF, Extended: true, RTR: true, DLC: 8},
		{ID: 0x0, DLC: 8, Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}

	state := openState()
	for _, frame := range frames {
		line, ok := EncodeFrame(frame, state)
		if !ok {
			t.Fatalf("encoding refused for %+v", frame)
		}
		decoded, err := DecodeFrame(line[:len(line)-1])
		if err != nil {
			t.Fatalf("decode of %q failed: %v", line, err)
		}
		if decoded != frame {
			t.Fatalf("round trip mismatch: got %+v want %+v", decoded, frame)
		}
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"unknown type", "x1230"},
		{"truncated id", "t12"},
		{"bad id hex", "tXYZ0"},
		{"bad dlc", "t1239"},
		{"truncated data", "t1232AA"},
		{"bad data hex", "t1231GG"},
		{"extended id out of range", "TFFFFFFFF0"},
	}

	for _, tc := range cases {
		if _, err := DecodeFrame(tc.line); !errors.Is(err, ErrBadFrameCommand) {
			t.Fatalf("%s: expected ErrBadFrameCommand got %v", tc.name, err)
		}
	}
}
