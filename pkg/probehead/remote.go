package probehead

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/link"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

// ErrFirmware wraps an error message reported by the head itself.
var ErrFirmware = errors.New("probehead: firmware error")

// Timeouts bounds the wait for each class of command.
type Timeouts struct {
	List     time.Duration `yaml:"list"`     // LIST_PINS, UART_PORTS
	Slack    time.Duration `yaml:"slack"`    // added to capture windows and UART listens
	UARTTry  time.Duration `yaml:"uart_try"` // listen time requested from the head
	Bus      time.Duration `yaml:"bus"`      // I2C_SCAN, SPI_XFER
	JTAG     time.Duration `yaml:"jtag"`
	Identify time.Duration `yaml:"identify"`
	Dump     time.Duration `yaml:"dump"` // header wait and idle time during a dump
	Glitch   time.Duration `yaml:"glitch"`
}

// DefaultTimeouts returns the timeouts the head firmware is tuned for.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		List:     500 * time.Millisecond,
		Slack:    500 * time.Millisecond,
		UARTTry:  500 * time.Millisecond,
		Bus:      2 * time.Second,
		JTAG:     time.Second,
		Identify: time.Second,
		Dump:     5 * time.Second,
		Glitch:   2 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.List, d.List)
	fill(&t.Slack, d.Slack)
	fill(&t.UARTTry, d.UARTTry)
	fill(&t.Bus, d.Bus)
	fill(&t.JTAG, d.JTAG)
	fill(&t.Identify, d.Identify)
	fill(&t.Dump, d.Dump)
	fill(&t.Glitch, d.Glitch)
	return t
}

// DefaultI2CFrequency is the bus clock requested for I2C scans.
const DefaultI2CFrequency = 100000

// FallbackPins is used when the head does not report its pins.
func FallbackPins() []probe.PinID {
	pins := make([]probe.PinID, 0, 26)
	for gpio := 2; gpio < 28; gpio++ {
		pins = append(pins, probe.PinID(strconv.Itoa(gpio)))
	}
	return pins
}

// Remote is a probe.Capability backed by a probe head.
type Remote struct {
	client   *link.Client
	timeouts Timeouts
	i2cHz    int
	logger   *slog.Logger
}

// NewRemote wraps client. Zero fields in t take their defaults.
func NewRemote(client *link.Client, t Timeouts, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Remote{
		client:   client,
		timeouts: t.withDefaults(),
		i2cHz:    DefaultI2CFrequency,
		logger:   logger,
	}
}

// Close closes the underlying link.
func (r *Remote) Close() error { return r.client.Close() }

// do runs cmd and treats silence as a timeout.
func (r *Remote) do(cmd link.Command, timeout time.Duration) (link.Response, error) {
	resp, err := r.client.Do(cmd, timeout)
	if err != nil {
		return resp, err
	}
	if resp.Empty() {
		return resp, &probe.TransportError{Op: cmd.Verb, Err: probe.ErrTimeout}
	}
	return resp, nil
}

// query runs cmd and decodes the payload under key into v. found is false
// when the head answered without that payload and without an error.
func (r *Remote) query(cmd link.Command, timeout time.Duration, key string, v any) (found bool, err error) {
	resp, err := r.do(cmd, timeout)
	if err != nil {
		return false, err
	}
	if !resp.Has(key) {
		if msg := resp.FirmwareError(); msg != "" {
			return false, &probe.TransportError{Op: cmd.Verb, Err: fmt.Errorf("%w: %s", ErrFirmware, msg)}
		}
		return false, nil
	}
	if err := resp.Decode(key, v); err != nil {
		return false, &probe.TransportError{Op: cmd.Verb, Err: err}
	}
	if msg := resp.FirmwareError(); msg != "" {
		r.logger.Debug("firmware reported an error alongside data", "command", cmd.Verb, "error", msg)
	}
	return true, nil
}

// ListPins asks the head for its pins and falls back to GPIO 2..27 when it
// does not say. Only a dead link is an error.
func (r *Remote) ListPins() ([]probe.PinID, error) {
	var nums []json.Number
	found, err := r.query(link.NewCommand("LIST_PINS"), r.timeouts.List, "pins", &nums)
	switch {
	case err != nil && !isSoftFailure(err):
		return nil, err
	case err != nil || !found:
		r.logger.Debug("head did not report pins, using fallback", "error", err)
		return FallbackPins(), nil
	}

	pins := make([]probe.PinID, len(nums))
	for i, n := range nums {
		pins[i] = probe.PinID(n.String())
	}
	return pins, nil
}

// isSoftFailure reports whether the head is still talking: it was silent,
// garbled or refused the command.
func isSoftFailure(err error) bool {
	return errors.Is(err, probe.ErrTimeout) ||
		errors.Is(err, probe.ErrMalformed) ||
		errors.Is(err, ErrFirmware)
}

func (r *Remote) CaptureEdges(pin probe.PinID, window time.Duration) ([]float64, error) {
	var edges []float64
	cmd := link.NewCommand("CAPTURE_EDGES", pin, window.Milliseconds())
	if _, err := r.query(cmd, window+r.timeouts.Slack, "edges", &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *Remote) UARTPorts() ([]probe.Endpoint, error) {
	var ports []string
	if _, err := r.query(link.NewCommand("UART_PORTS"), r.timeouts.List, "ports", &ports); err != nil {
		return nil, err
	}
	eps := make([]probe.Endpoint, len(ports))
	for i, p := range ports {
		eps[i] = probe.Endpoint(p)
	}
	return eps, nil
}

// UARTTry asks the head to listen on ep at baud. Heads report captured data
// either as text or as a list of byte values.
func (r *Remote) UARTTry(ep probe.Endpoint, baud int) ([]byte, error) {
	var raw json.RawMessage
	cmd := link.NewCommand("UART_TRY", ep, baud, r.timeouts.UARTTry.Milliseconds())
	found, err := r.query(cmd, r.timeouts.UARTTry+r.timeouts.Slack, "data", &raw)
	if err != nil || !found {
		return nil, err
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return []byte(text), nil
	}
	var values []int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, &probe.TransportError{Op: cmd.Verb, Err: fmt.Errorf("%w: data is neither text nor bytes", probe.ErrMalformed)}
	}
	data := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 0xFF {
			return nil, &probe.TransportError{Op: cmd.Verb, Err: fmt.Errorf("%w: byte value %d", probe.ErrMalformed, v)}
		}
		data[i] = byte(v)
	}
	return data, nil
}

func (r *Remote) I2CScan(sda, scl probe.PinID) ([]int, error) {
	var addrs []int
	cmd := link.NewCommand("I2C_SCAN", sda, scl, r.i2cHz)
	if _, err := r.query(cmd, r.timeouts.Bus, "addresses", &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

func (r *Remote) SPIXfer(bus probe.SPIPins, tx []byte) ([]byte, error) {
	var resp string
	cmd := link.NewCommand("SPI_XFER", bus.SCLK, bus.MOSI, bus.MISO, bus.CS, hex.EncodeToString(tx))
	if _, err := r.query(cmd, r.timeouts.Bus, "resp", &resp); err != nil {
		return nil, err
	}
	rx, err := hex.DecodeString(resp)
	if err != nil {
		return nil, &probe.TransportError{Op: cmd.Verb, Err: fmt.Errorf("%w: resp: %v", probe.ErrMalformed, err)}
	}
	return rx, nil
}

// JTAGIDCode reads an IDCODE. The head reports it as hex text; null or a
// missing field means nothing answered.
func (r *Remote) JTAGIDCode(tap probe.JTAGPins) (uint32, bool, error) {
	var raw json.RawMessage
	cmd := link.NewCommand("JTAG_IDCODE", tap.TCK, tap.TMS, tap.TDI, tap.TDO)
	found, err := r.query(cmd, r.timeouts.JTAG, "idcode", &raw)
	if err != nil || !found {
		return 0, false, err
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false, &probe.TransportError{Op: cmd.Verb, Err: fmt.Errorf("%w: idcode %s", probe.ErrMalformed, raw)}
	}
	if text == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(text), "0x"), 16, 32)
	if err != nil {
		return 0, false, &probe.TransportError{Op: cmd.Verb, Err: fmt.Errorf("%w: idcode %q", probe.ErrMalformed, text)}
	}
	return uint32(id), true, nil
}

func (r *Remote) IdentifyChips() ([]probe.ChipDescriptor, error) {
	var chips []probe.ChipDescriptor
	if _, err := r.query(link.NewCommand("IDENTIFY_CHIPS"), r.timeouts.Identify, "chips", &chips); err != nil {
		return nil, err
	}
	return chips, nil
}
