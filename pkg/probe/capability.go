package probe

import "time"

// The capability interfaces are what a hardware backend must provide. A
// backend either talks to local hardware or relays commands to a remote
// probe head (see package probehead). Every call blocks until it has a
// result or its own timeout fires.

// PinLister enumerates the addressable pins.
type PinLister interface {
	ListPins() ([]PinID, error)
}

// EdgeCapturer records transition intervals on a pin for the given window.
// Intervals are in microseconds.
type EdgeCapturer interface {
	CaptureEdges(pin PinID, window time.Duration) ([]float64, error)
}

// UARTProber opens host-visible serial endpoints.
type UARTProber interface {
	UARTPorts() ([]Endpoint, error)
	// UARTTry listens on ep at baud and returns whatever arrived.
	UARTTry(ep Endpoint, baud int) ([]byte, error)
}

// I2CScanner scans a candidate bus for acknowledging 7-bit addresses.
type I2CScanner interface {
	I2CScan(sda, scl PinID) ([]int, error)
}

// SPIProber runs one full-duplex SPI transaction on a candidate wiring.
type SPIProber interface {
	SPIXfer(bus SPIPins, tx []byte) ([]byte, error)
}

// JTAGProber reads the IDCODE register through a candidate TAP wiring. The
// boolean is false when nothing answered.
type JTAGProber interface {
	JTAGIDCode(tap JTAGPins) (uint32, bool, error)
}

// Capability is the full set of operations the prober needs.
type Capability interface {
	PinLister
	EdgeCapturer
	UARTProber
	I2CScanner
	SPIProber
	JTAGProber
}

// ChipIdentifier is optionally implemented by backends that can name the
// chips they see.
type ChipIdentifier interface {
	IdentifyChips() ([]ChipDescriptor, error)
}

// Recorder receives findings and log lines as a run produces them, typically
// for durable storage. Errors are logged by the prober and never abort a run.
type Recorder interface {
	RecordFinding(targetID string, f Finding) error
	RecordLog(targetID, line string) error
}
