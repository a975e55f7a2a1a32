package link

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

const readChunk = 4096

// Client issues commands over a Port. Calls are serialized; a Client has no
// goroutines of its own.
type Client struct {
	mu      sync.Mutex
	port    Port
	logger  *slog.Logger
	pending []byte
	buf     []byte
}

// NewClient binds a client to port. A nil logger discards output.
func NewClient(port Port, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		port:   port,
		logger: logger,
		buf:    make([]byte, readChunk),
	}
}

// Close closes the underlying port if it can be closed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.port.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// Do sends cmd and waits up to timeout for one response line. Silence is not
// an error: it yields an empty Response.
func (c *Client) Do(cmd Command, timeout time.Duration) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(cmd); err != nil {
		return Response{}, err
	}

	line, ok, err := c.readLine(timeout)
	if err != nil {
		return Response{}, &probe.TransportError{Op: cmd.Verb, Err: err}
	}
	if !ok {
		c.logger.Debug("no response", "command", cmd.Verb, "timeout", timeout)
		return Response{}, nil
	}
	c.logger.Debug("response", "command", cmd.Verb, "line", line)
	return ParseResponse(line), nil
}

// send drops stale input and writes the command line.
func (c *Client) send(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if err := c.port.Discard(); err != nil {
		return &probe.TransportError{Op: cmd.Verb, Err: fmt.Errorf("discarding input: %w", err)}
	}
	c.pending = c.pending[:0]

	c.logger.Debug("command", "line", cmd.String())
	if _, err := io.WriteString(c.port, cmd.String()+"\n"); err != nil {
		return &probe.TransportError{Op: cmd.Verb, Err: err}
	}
	return nil
}

// readLine returns the next non-blank line. ok is false when the deadline
// passes first. A stream that closes mid-line yields the partial line.
func (c *Client) readLine(timeout time.Duration) (line string, ok bool, err error) {
	deadline := time.Now().Add(timeout)
	for {
		for {
			i := bytes.IndexByte(c.pending, '\n')
			if i < 0 {
				break
			}
			l := string(bytes.TrimSpace(c.pending[:i]))
			c.pending = c.pending[i+1:]
			if l != "" {
				return l, true, nil
			}
		}

		if !time.Now().Before(deadline) {
			return "", false, nil
		}

		n, err := c.port.Read(c.buf)
		c.pending = append(c.pending, c.buf[:n]...)
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			return "", false, err
		}
		if bytes.IndexByte(c.pending, '\n') >= 0 {
			// Hand out complete lines before reporting the close.
			continue
		}
		l := string(bytes.TrimSpace(c.pending))
		c.pending = c.pending[:0]
		if l != "" {
			return l, true, nil
		}
		return "", false, err
	}
}

// readSome fills p from buffered input or the port. It returns ErrTimeout
// when nothing arrives within idle.
func (c *Client) readSome(p []byte, idle time.Duration) (int, error) {
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}

	deadline := time.Now().Add(idle)
	for {
		n, err := c.port.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		if !time.Now().Before(deadline) {
			return 0, probe.ErrTimeout
		}
	}
}
