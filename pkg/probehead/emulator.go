package probehead

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/link"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

// GlitchFunc fires one glitch on an emulated head and returns the result
// object the head would report.
type GlitchFunc func(verb string, pulseNS, delayNS int) map[string]any

// Emulator answers link commands on behalf of a probe head, serving a
// probe.Capability. Images maps dump verbs (VerbSPIDump...) to the bytes
// they stream.
type Emulator struct {
	Board  probe.Capability
	Images map[string][]byte
	Glitch GlitchFunc
	Logger *slog.Logger
}

// Serve answers request lines from rw until the stream ends.
func (e *Emulator) Serve(rw io.ReadWriter) error {
	r := bufio.NewReader(rw)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			if herr := e.Handle(line, rw); herr != nil {
				return herr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("probehead: emulator read: %w", err)
		}
	}
}

// Handle answers one request line, writing the reply to w. Only write
// failures are returned; bad requests are answered with an error object.
func (e *Emulator) Handle(line string, w io.Writer) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, err := link.ParseCommand(line)
	if err != nil {
		return reply(w, map[string]any{"error": "unknown_cmd", "raw": line})
	}
	e.logger().Debug("emulator request", "command", cmd.String())

	switch cmd.Verb {
	case VerbSPIDump, VerbI2CDump, VerbJTAGDump:
		return e.dump(cmd.Verb, w)
	}

	resp, err := e.dispatch(cmd)
	if err != nil {
		resp = map[string]any{"error": err.Error()}
	}
	return reply(w, resp)
}

func (e *Emulator) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

func (e *Emulator) dispatch(cmd link.Command) (map[string]any, error) {
	a := args(cmd)
	switch cmd.Verb {
	case "LIST_PINS":
		pins, err := e.Board.ListPins()
		if err != nil {
			return nil, err
		}
		return map[string]any{"pins": pinValues(pins)}, nil

	case "CAPTURE_EDGES":
		pin, ms := a.str(0), a.num(1)
		if a.err != nil {
			return nil, a.err
		}
		edges, err := e.Board.CaptureEdges(probe.PinID(pin), time.Duration(ms)*time.Millisecond)
		if err != nil {
			return nil, err
		}
		if edges == nil {
			edges = []float64{}
		}
		return map[string]any{"edges": edges}, nil

	case "UART_PORTS":
		eps, err := e.Board.UARTPorts()
		if err != nil {
			return nil, err
		}
		ports := make([]string, len(eps))
		for i, ep := range eps {
			ports[i] = string(ep)
		}
		return map[string]any{"ports": ports}, nil

	case "UART_TRY":
		ep, baud := a.str(0), a.num(1)
		if a.err != nil {
			return nil, a.err
		}
		data, err := e.Board.UARTTry(probe.Endpoint(ep), baud)
		if err != nil {
			return nil, err
		}
		if utf8.Valid(data) {
			return map[string]any{"data": string(data)}, nil
		}
		values := make([]int, len(data))
		for i, c := range data {
			values[i] = int(c)
		}
		return map[string]any{"data": values}, nil

	case "I2C_SCAN":
		sda, scl := a.str(0), a.str(1)
		if a.err != nil {
			return nil, a.err
		}
		addrs, err := e.Board.I2CScan(probe.PinID(sda), probe.PinID(scl))
		if err != nil {
			return map[string]any{"addresses": []int{}, "error": err.Error()}, nil
		}
		if addrs == nil {
			addrs = []int{}
		}
		return map[string]any{"addresses": addrs}, nil

	case "SPI_XFER":
		bus := probe.SPIPins{SCLK: probe.PinID(a.str(0)), MOSI: probe.PinID(a.str(1)), MISO: probe.PinID(a.str(2)), CS: probe.PinID(a.str(3))}
		tx := a.hex(4)
		if a.err != nil {
			return nil, a.err
		}
		rx, err := e.Board.SPIXfer(bus, tx)
		if err != nil {
			return map[string]any{"resp": "", "error": err.Error()}, nil
		}
		return map[string]any{"resp": hex.EncodeToString(rx)}, nil

	case "JTAG_IDCODE":
		tap := probe.JTAGPins{TCK: probe.PinID(a.str(0)), TMS: probe.PinID(a.str(1)), TDI: probe.PinID(a.str(2)), TDO: probe.PinID(a.str(3))}
		if a.err != nil {
			return nil, a.err
		}
		id, ok, err := e.Board.JTAGIDCode(tap)
		if err != nil {
			return nil, err
		}
		if !ok {
			return map[string]any{"idcode": nil}, nil
		}
		return map[string]any{"idcode": fmt.Sprintf("0x%08x", id)}, nil

	case "IDENTIFY_CHIPS":
		chips := []probe.ChipDescriptor{}
		if id, ok := e.Board.(probe.ChipIdentifier); ok {
			got, err := id.IdentifyChips()
			if err != nil {
				return nil, err
			}
			chips = append(chips, got...)
		}
		return map[string]any{"chips": chips}, nil

	case VerbGlitchVoltage, VerbGlitchClock, VerbGlitchReset:
		pulse, delay := a.num(0), a.num(1)
		if a.err != nil {
			return nil, a.err
		}
		if e.Glitch == nil {
			return map[string]any{"result": "NOT_IMPLEMENTED"}, nil
		}
		return e.Glitch(cmd.Verb, pulse, delay), nil
	}

	return map[string]any{"error": "unknown_cmd", "raw": cmd.String()}, nil
}

// dump streams an image as a size header followed by the raw bytes.
func (e *Emulator) dump(verb string, w io.Writer) error {
	img, ok := e.Images[verb]
	if !ok {
		return reply(w, map[string]any{"error": "no_image"})
	}
	if err := reply(w, map[string]any{"size": len(img)}); err != nil {
		return err
	}
	if _, err := w.Write(img); err != nil {
		return fmt.Errorf("probehead: emulator %s: %w", verb, err)
	}
	return nil
}

func reply(w io.Writer, v map[string]any) error {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(map[string]any{"error": err.Error()})
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("probehead: emulator reply: %w", err)
	}
	return nil
}

// pinValues reports numeric pins as numbers, the way head firmware does.
func pinValues(pins []probe.PinID) []any {
	out := make([]any, len(pins))
	for i, p := range pins {
		if n, err := strconv.Atoi(string(p)); err == nil {
			out[i] = n
		} else {
			out[i] = string(p)
		}
	}
	return out
}

// argReader pulls typed arguments and keeps the first error.
type argReader struct {
	cmd link.Command
	err error
}

func args(cmd link.Command) *argReader { return &argReader{cmd: cmd} }

func (a *argReader) str(i int) string {
	if i >= len(a.cmd.Args) {
		if a.err == nil {
			a.err = fmt.Errorf("bad_args: %s needs argument %d", a.cmd.Verb, i+1)
		}
		return ""
	}
	return a.cmd.Args[i]
}

func (a *argReader) num(i int) int {
	s := a.str(i)
	if a.err != nil {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		a.err = fmt.Errorf("bad_args: %s argument %d %q is not a number", a.cmd.Verb, i+1, s)
	}
	return n
}

func (a *argReader) hex(i int) []byte {
	s := a.str(i)
	if a.err != nil {
		return nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		a.err = fmt.Errorf("bad_args: %s argument %d is not hex", a.cmd.Verb, i+1)
	}
	return b
}
