package can

import (
	"errors"
	"testing"
)

func TestSimDeviceExclusiveSession(t *testing.T) {
	dev := NewSimDevice(125000)

	first, err := dev.Open(SessionConfig{Bitrate: 125000, QueueDepth: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := dev.Open(SessionConfig{Bitrate: 250000, QueueDepth: 1}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy got %v", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := dev.Open(SessionConfig{Bitrate: 250000, QueueDepth: 1})
	if err != nil {
		t.Fatalf("open after close failed: %v", err)
	}
	second.Close()
}

func TestSimDeviceBitrateGatesDelivery(t *testing.T) {
	dev := NewSimDevice(500000)

	session, err := dev.Open(SessionConfig{Bitrate: 125000, ListenOnly: true, QueueDepth: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	fired := 0
	session.SetReceiveHandler(func() { fired++ })
	if err := session.Enable(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dev.Inject(Frame{ID: 0x100, DLC: 1, Data: [8]byte{0xAA}})
	if fired != 0 {
		t.Fatalf("wrong-speed session observed traffic")
	}
	if _, ok := session.TryReceive(); ok {
		t.Fatalf("wrong-speed session received a frame")
	}
}

func TestSimDeviceReceiveHandler(t *testing.T) {
	dev := NewSimDevice(125000)

	session, err := dev.Open(SessionConfig{Bitrate: 125000, QueueDepth: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	var got []Frame
	session.SetReceiveHandler(func() {
		if f, ok := session.TryReceive(); ok {
			got = append(got, f)
		}
	})
	if err := session.Enable(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := Frame{ID: 0x123, DLC: 2, Data: [8]byte{0xAA, 0xBB}}
	dev.Inject(sent)

	if len(got) != 1 {
		t.Fatalf("expected 1 frame got %d", len(got))
	}
	if got[0] != sent {
		t.Fatalf("frame mismatch: got %+v want %+v", got[0], sent)
	}
}

func TestSimDeviceTransmit(t *testing.T) {
	dev := NewSimDevice(125000)

	session, err := dev.Open(SessionConfig{Bitrate: 125000, QueueDepth: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()
	if err := session.Enable(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame := Frame{ID: 0x321, DLC: 1, Data: [8]byte{0x42}}
	if err := session.Transmit(frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := dev.Transmitted()
	if len(sent) != 1 || sent[0] != frame {
		t.Fatalf("unexpected transmit record: %+v", sent)
	}

	dev.TxFull = true
	if err := session.Transmit(frame); !errors.Is(err, ErrTxQueueFull) {
		t.Fatalf("expected ErrTxQueueFull got %v", err)
	}
}

func TestSimDeviceListenOnlyRejectsTransmit(t *testing.T) {
	dev := NewSimDevice(125000)

	session, err := dev.Open(SessionConfig{Bitrate: 125000, ListenOnly: true, QueueDepth: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	if err := session.Transmit(Frame{ID: 0x1}); !errors.Is(err, ErrListenOnly) {
		t.Fatalf("expected ErrListenOnly got %v", err)
	}
}

func TestSimSessionQueueBound(t *testing.T) {
	dev := NewSimDevice(125000)

	session, err := dev.Open(SessionConfig{Bitrate: 125000, QueueDepth: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()
	if err := session.Enable(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 5; i++ {
		dev.Inject(Frame{ID: uint32(i), DLC: 0})
	}

	received := 0
	for {
		if _, ok := session.TryReceive(); !ok {
			break
		}
		received++
	}
	if received != 2 {
		t.Fatalf("expected hardware queue bound of 2, received %d", received)
	}
}
