package link

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

// StreamResult describes one bulk transfer.
type StreamResult struct {
	Declared int64
	Received int64
}

// Truncated reports whether fewer bytes arrived than the header declared.
func (r StreamResult) Truncated() bool { return r.Received < r.Declared }

type streamHeader struct {
	Size  *int64 `json:"size"`
	Error string `json:"error"`
}

// Stream sends cmd, reads the size header and copies exactly the declared
// number of bytes into sink as they arrive. timeout bounds the wait for the
// header and each period without progress.
//
// A bad header returns ErrBadHeader before anything is written. A transfer
// that ends early returns the partial result together with ErrShortStream;
// the bytes already written stay in sink.
func (c *Client) Stream(cmd Command, sink io.Writer, timeout time.Duration) (StreamResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res StreamResult
	if err := c.send(cmd); err != nil {
		return res, err
	}

	line, ok, err := c.readLine(timeout)
	switch {
	case err != nil:
		return res, &probe.ProtocolError{Op: cmd.Verb, Err: fmt.Errorf("%w: %v", probe.ErrBadHeader, err)}
	case !ok:
		return res, &probe.ProtocolError{Op: cmd.Verb, Err: fmt.Errorf("%w: no header within %s", probe.ErrBadHeader, timeout)}
	}

	size, err := parseHeader(line)
	if err != nil {
		return res, &probe.ProtocolError{Op: cmd.Verb, Err: err}
	}
	res.Declared = size
	c.logger.Debug("stream started", "command", cmd.Verb, "size", size)

	for res.Received < res.Declared {
		want := res.Declared - res.Received
		if want > readChunk {
			want = readChunk
		}
		n, err := c.readSome(c.buf[:want], timeout)
		if n > 0 {
			if _, werr := sink.Write(c.buf[:n]); werr != nil {
				return res, fmt.Errorf("link: %s: writing sink: %w", cmd.Verb, werr)
			}
			res.Received += int64(n)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, probe.ErrTimeout) {
				c.logger.Debug("stream read failed", "command", cmd.Verb, "error", err)
			}
			break
		}
	}

	if res.Truncated() {
		c.logger.Warn("stream truncated", "command", cmd.Verb, "declared", res.Declared, "received", res.Received)
		return res, &probe.ProtocolError{
			Op:  cmd.Verb,
			Err: fmt.Errorf("%w: received %d of %d bytes", probe.ErrShortStream, res.Received, res.Declared),
		}
	}
	return res, nil
}

func parseHeader(line string) (int64, error) {
	var h streamHeader
	if err := json.Unmarshal([]byte(line), &h); err != nil {
		return 0, fmt.Errorf("%w: %q", probe.ErrBadHeader, line)
	}
	if h.Size == nil {
		if h.Error != "" {
			return 0, fmt.Errorf("%w: %s", probe.ErrBadHeader, h.Error)
		}
		return 0, fmt.Errorf("%w: no size in %q", probe.ErrBadHeader, line)
	}
	if *h.Size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", probe.ErrBadHeader, *h.Size)
	}
	return *h.Size, nil
}
