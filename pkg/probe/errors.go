package probe

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by TransportError and ProtocolError.
var (
	ErrTimeout     = errors.New("probe: no response before timeout")
	ErrMalformed   = errors.New("probe: malformed response")
	ErrBadHeader   = errors.New("probe: unparsable stream size header")
	ErrShortStream = errors.New("probe: stream ended before declared size")

	// ErrNotSupported lets backends signal that a capability is absent.
	ErrNotSupported = errors.New("probe: not supported by backend")
)

// TransportError reports an I/O failure, a timeout or a malformed response
// from a backend. It is never fatal to a probe run: the candidate is skipped.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a broken bulk transfer (bad size header, or a stream
// that ended early). It aborts the current transfer only.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ConfigError reports missing or invalid setup. It is surfaced to the caller
// before any probing starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocol reports whether err is, or wraps, a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsConfig reports whether err is, or wraps, a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
