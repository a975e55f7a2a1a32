package link

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tarm/serial"
)

// Port is the byte stream a Client talks over. Read must return within a
// bounded poll interval: (0, nil) means no data arrived yet and io.EOF means
// the stream is closed.
type Port interface {
	io.ReadWriter

	// Discard drops any input buffered but not yet read.
	Discard() error
}

const (
	// DefaultPoll is the read poll interval used when none is configured.
	DefaultPoll = 20 * time.Millisecond

	// DefaultBootDelay is how long OpenSerial waits for a probe head that
	// resets when its port is opened.
	DefaultBootDelay = 1500 * time.Millisecond

	defaultWriteTimeout = 2 * time.Second

	discardPolls = 4
	discardLimit = 64 << 10
)

// ConnPort adapts a net.Conn into a Port using read deadlines.
type ConnPort struct {
	conn         net.Conn
	poll         time.Duration
	writeTimeout time.Duration
}

// NewConnPort wraps conn. A zero poll selects DefaultPoll.
func NewConnPort(conn net.Conn, poll time.Duration) *ConnPort {
	if poll <= 0 {
		poll = DefaultPoll
	}
	return &ConnPort{conn: conn, poll: poll, writeTimeout: defaultWriteTimeout}
}

// DialTCP connects to a probe head exposed over TCP, such as a ser2net
// relay or the emulate command.
func DialTCP(addr string, timeout, poll time.Duration) (*ConnPort, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("link: dial %s: %w", addr, err)
	}
	return NewConnPort(conn, poll), nil
}

// Read waits at most one poll interval. A peer that has gone away reads as
// io.EOF.
func (p *ConnPort) Read(b []byte) (int, error) {
	if err := p.conn.SetReadDeadline(time.Now().Add(p.poll)); err != nil {
		// net.Pipe refuses deadlines once either end is closed; its Read
		// then reports which end it was without blocking.
		if !errors.Is(err, io.ErrClosedPipe) {
			return 0, err
		}
	}
	n, err := p.conn.Read(b)
	if err != nil && isTimeout(err) {
		return n, nil
	}
	return n, err
}

func (p *ConnPort) Write(b []byte) (int, error) {
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
		return 0, err
	}
	return p.conn.Write(b)
}

// Discard reads and drops input until the stream is idle for one poll
// interval. A head that never goes quiet is drained for at most
// discardPolls intervals or discardLimit bytes.
func (p *ConnPort) Discard() error {
	buf := make([]byte, 512)
	deadline := time.Now().Add(discardPolls * p.poll)
	dropped := 0
	for dropped < discardLimit && time.Now().Before(deadline) {
		n, err := p.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
		dropped += n
	}
	return nil
}

func (p *ConnPort) Close() error { return p.conn.Close() }

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// SerialConfig describes a probe head attached to a local serial device.
type SerialConfig struct {
	Name      string
	Baud      int
	Poll      time.Duration
	BootDelay time.Duration
}

// SerialPort is a Port over a local serial device.
type SerialPort struct {
	port *serial.Port
}

// OpenSerial opens the device, waits out the head's boot delay and drops
// whatever it printed while starting.
func OpenSerial(cfg SerialConfig) (*SerialPort, error) {
	if cfg.Name == "" {
		return nil, errors.New("link: serial device name is required")
	}
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	if cfg.BootDelay < 0 {
		cfg.BootDelay = 0
	}

	sp, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Name,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.Poll,
	})
	if err != nil {
		return nil, fmt.Errorf("link: open %s: %w", cfg.Name, err)
	}

	time.Sleep(cfg.BootDelay)
	p := &SerialPort{port: sp}
	if err := p.Discard(); err != nil {
		sp.Close()
		return nil, fmt.Errorf("link: flush %s: %w", cfg.Name, err)
	}
	return p, nil
}

// Read returns (0, nil) when the read timeout elapses. The serial driver
// reports an elapsed timeout as io.EOF, and a local device never reaches a
// real end of stream.
func (p *SerialPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (p *SerialPort) Write(b []byte) (int, error) { return p.port.Write(b) }

func (p *SerialPort) Discard() error { return p.port.Flush() }

func (p *SerialPort) Close() error { return p.port.Close() }
