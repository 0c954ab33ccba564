package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"go.bug.st/serial"

	"github.com/example/can_slcan_bridge/cmd/bridge/internal/app"
	"github.com/example/can_slcan_bridge/cmd/bridge/internal/can"
)

func main() {
	var (
		serialPort    = flag.String("serial-port", "/dev/ttyUSB0", "Serial port connected to the SLCAN host tool")
		serialBaud    = flag.Int("serial-baud", 115200, "Baud rate of the serial port")
		canTxPin      = flag.Int("can-tx-pin", 4, "TX pin of the CAN transceiver")
		canRxPin      = flag.Int("can-rx-pin", 5, "RX pin of the CAN transceiver")
		detectTimeout = flag.Duration("detect-timeout", 2*time.Second, "Timeout per candidate bitrate during auto-detection")
		queueDepth    = flag.Int("queue-depth", 50, "Capacity of the receive frame queue")
		logLevel      = flag.String("log-level", "info", "Log level (debug|info|warn|error)")
		simBitrate    = flag.Uint("sim-bus-bitrate", 125000, "Bitrate of the simulated CAN bus backing this build")
	)

	flag.Parse()

	cfg := app.Config{
		SerialPort: *serialPort,
		SerialBaud: *serialBaud,
		TXPin:      *canTxPin,
		RXPin:      *canRxPin,
		QueueDepth: *queueDepth,
		LogLevel:   *logLevel,
		Detect: app.DetectOptions{
			PerCandidateTimeout: *detectTimeout,
			TXPin:               *canTxPin,
			RXPin:               *canRxPin,
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialise logger: %v", err)
	}

	device := openDevice(ctx, *simBitrate)

	logger.Infof("starting CAN bitrate auto-detection (TX pin %d, RX pin %d)", cfg.TXPin, cfg.RXPin)
	detector := app.NewDetector(device, logger)
	bitrate, err := detector.Detect(ctx, cfg.Detect)
	if err != nil {
		logger.Errorf("bitrate auto-detection failed: %v", err)
		logger.Errorf("check the transceiver wiring, that the bus carries traffic, and the pin configuration (TX:%d RX:%d)", cfg.TXPin, cfg.RXPin)
		os.Exit(1)
	}
	logger.Infof("detected bus bitrate: %d bit/s", bitrate)
	cfg.BusBitrate = bitrate

	session, err := device.Open(can.SessionConfig{
		TXPin:      cfg.TXPin,
		RXPin:      cfg.RXPin,
		Bitrate:    bitrate,
		QueueDepth: 10,
	})
	if err != nil {
		log.Fatalf("failed to open CAN session: %v", err)
	}
	defer session.Close()

	transport, err := openSerial(cfg)
	if err != nil {
		log.Fatalf("failed to open serial port: %v", err)
	}
	defer transport.Close()

	bridge, err := app.New(cfg, session, transport)
	if err != nil {
		log.Fatalf("failed to initialise bridge: %v", err)
	}

	if err := bridge.Run(ctx); err != nil {
		log.Fatalf("bridge terminated: %v", err)
	}
}

// openSerial opens the host-side serial port with a short read timeout
// so the serial task polls instead of blocking forever.
func openSerial(cfg app.Config) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.SerialBaud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.SerialPort, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(10 * time.Millisecond); err != nil {
		port.Close()
		return nil, err
	}
	_ = port.ResetInputBuffer()
	_ = port.ResetOutputBuffer()
	return port, nil
}

// openDevice constructs the CAN controller backing this build: a
// simulated bus carrying a periodic heartbeat frame, so detection and
// bridging can be exercised end to end without a transceiver. Hardware
// ports swap in their own can.Device implementation here.
func openDevice(ctx context.Context, simBitrate uint) can.Device {
	dev := can.NewSimDevice(uint32(simBitrate))
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dev.Inject(can.Frame{ID: 0x100, DLC: 1, Data: [8]byte{0x55}})
			}
		}
	}()
	return dev
}
