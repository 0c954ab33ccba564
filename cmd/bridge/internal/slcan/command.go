package slcan

import (
	"github.com/example/can_slcan_bridge/cmd/bridge/internal/can"
)

// Acknowledgment vocabulary of the protocol: a bare carriage return
// accepts a command, a single BEL byte rejects it.
const (
	respOK  = "\r"
	respErr = "\a"
)

// Fixed identification strings returned by the V/v/N queries.
const (
	hwVersion    = "V1010"
	fwVersion    = "v0001"
	serialNumber = "NCAN1"
)

// maxLineLen bounds the command accumulation buffer. A longer line is
// discarded silently and accumulation restarts at the next byte.
const maxLineLen = 128

// bitrateCodes maps the standard S0..S8 codes to bit/s.
var bitrateCodes = [...]uint32{
	10000,   // S0
	20000,   // S1
	50000,   // S2
	100000,  // S3
	125000,  // S4
	250000,  // S5
	500000,  // S6
	800000,  // S7
	1000000, // S8
}

// TransmitFunc submits a decoded frame to the bus transmit path.
type TransmitFunc func(can.Frame) error

type handlerFunc func(p *Parser, line string) string

// Parser accumulates serial bytes into SLCAN command lines and
// dispatches them. It owns the channel state and hands decoded
// transmit frames to the TransmitFunc.
//
// Parser performs no I/O: Feed and Dispatch return the response bytes
// for the caller to write back to the host.
type Parser struct {
	state    *State
	transmit TransmitFunc
	handlers map[byte]handlerFunc
	line     []byte
}

// NewParser creates a parser bound to the given channel state and
// transmit path.
func NewParser(state *State, transmit TransmitFunc) *Parser {
	p := &Parser{
		state:    state,
		transmit: transmit,
		line:     make([]byte, 0, maxLineLen),
	}
	p.handlers = map[byte]handlerFunc{
		'S': (*Parser).handleSetBitrate,
		's': (*Parser).handleUnsupported,
		'O': (*Parser).handleOpen,
		'C': (*Parser).handleClose,
		'V': fixedResponse(hwVersion + "\r"),
		'v': fixedResponse(fwVersion + "\r"),
		'N': fixedResponse(serialNumber + "\r"),
		'Z': (*Parser).handleTimestamp,
		'F': fixedResponse("F00\r"),
		't': (*Parser).handleTransmit,
		'T': (*Parser).handleTransmit,
		'r': (*Parser).handleTransmit,
		'R': (*Parser).handleTransmit,
	}
	return p
}

// Feed consumes raw serial bytes and returns the concatenated
// responses produced by every command line completed within them.
func (p *Parser) Feed(data []byte) []byte {
	var out []byte
	for _, c := range data {
		if c == '\r' || c == '\n' {
			if len(p.line) > 0 {
				out = append(out, p.Dispatch(string(p.line))...)
				p.line = p.line[:0]
			}
			continue
		}
		if len(p.line) >= maxLineLen {
			// Overflow: abandon the partial line and restart.
			p.line = p.line[:0]
		}
		p.line = append(p.line, c)
	}
	return out
}

// Dispatch executes one terminator-stripped command line and returns
// the response bytes. Zero-length lines are accepted as no-ops.
func (p *Parser) Dispatch(line string) string {
	if line == "" {
		return ""
	}
	handler, ok := p.handlers[line[0]]
	if !ok {
		return respErr
	}
	return handler(p, line)
}

func fixedResponse(resp string) handlerFunc {
	return func(*Parser, string) string { return resp }
}

func (p *Parser) handleSetBitrate(line string) string {
	if len(line) < 2 {
		return respErr
	}
	code := int(line[1] - '0')
	if code < 0 || code >= len(bitrateCodes) {
		return respErr
	}
	p.state.SetBitrate(bitrateCodes[code])
	return respOK
}

func (p *Parser) handleUnsupported(string) string {
	// Raw BTR register timing is not supported; hosts use S0..S8.
	return respErr
}

func (p *Parser) handleOpen(string) string {
	p.state.SetOpen(true)
	return respOK
}

func (p *Parser) handleClose(string) string {
	p.state.SetOpen(false)
	return respOK
}

func (p *Parser) handleTimestamp(line string) string {
	if len(line) < 2 {
		return respErr
	}
	p.state.SetTimestamp(line[1] == '1')
	return respOK
}

func (p *Parser) handleTransmit(line string) string {
	frame, err := DecodeFrame(line)
	if err != nil {
		return respErr
	}
	if err := p.transmit(frame); err != nil {
		return respErr
	}
	if frame.Extended {
		return "Z\r"
	}
	return "z\r"
}
