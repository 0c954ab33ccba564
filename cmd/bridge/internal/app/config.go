package app

// Config collects runtime settings for the bridge.
type Config struct {
	SerialPort string
	SerialBaud int
	TXPin      int
	RXPin      int
	QueueDepth int
	LogLevel   string
	BusBitrate uint32
	Detect     DetectOptions
}
