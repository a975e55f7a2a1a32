package probe

import (
	"sort"
	"time"
)

// SimBoard is an in-memory target board implementing Capability. It answers
// only on the wirings it was configured with, which makes it useful for unit
// tests and for exercising the CLI without hardware. Hooks, when set,
// replace the built-in behavior of the matching operation.
type SimBoard struct {
	Pins []PinID

	// Host endpoints and the baud each one answers at.
	Ports map[Endpoint]SimUART

	// Edge intervals (microseconds) returned per pin.
	Edges map[PinID][]float64

	// I2C buses keyed by wiring.
	I2C map[I2CPins][]int

	// SPI flashes keyed by wiring, with their three JEDEC ID bytes.
	SPI map[SPIPins][3]byte

	// JTAG TAPs keyed by wiring, with their IDCODE.
	JTAG map[JTAGPins]uint32

	Chips []ChipDescriptor

	OnUARTTry    func(ep Endpoint, baud int) ([]byte, error)
	OnI2CScan    func(sda, scl PinID) ([]int, error)
	OnSPIXfer    func(bus SPIPins, tx []byte) ([]byte, error)
	OnJTAGIDCode func(tap JTAGPins) (uint32, bool, error)

	calls SimCalls
}

// SimUART describes a serial endpoint on the simulated host.
type SimUART struct {
	Baud   int
	Banner []byte
}

// I2CPins is one candidate I2C wiring.
type I2CPins struct {
	SDA, SCL PinID
}

// SimCalls counts the operations a SimBoard has served.
type SimCalls struct {
	ListPins     int
	CaptureEdges int
	UARTPorts    int
	UARTTry      int
	I2CScan      int
	SPIXfer      int
	JTAGIDCode   int
	Identify     int
}

// NewSimBoard returns an empty board exposing the given pins.
func NewSimBoard(pins ...PinID) *SimBoard {
	return &SimBoard{
		Pins:  pins,
		Ports: make(map[Endpoint]SimUART),
		Edges: make(map[PinID][]float64),
		I2C:   make(map[I2CPins][]int),
		SPI:   make(map[SPIPins][3]byte),
		JTAG:  make(map[JTAGPins]uint32),
	}
}

// Calls returns a snapshot of the operation counters.
func (s *SimBoard) Calls() SimCalls { return s.calls }

func (s *SimBoard) ListPins() ([]PinID, error) {
	s.calls.ListPins++
	return append([]PinID(nil), s.Pins...), nil
}

func (s *SimBoard) CaptureEdges(pin PinID, _ time.Duration) ([]float64, error) {
	s.calls.CaptureEdges++
	return append([]float64(nil), s.Edges[pin]...), nil
}

func (s *SimBoard) UARTPorts() ([]Endpoint, error) {
	s.calls.UARTPorts++
	// Map order is random; keep enumeration reproducible.
	eps := make([]Endpoint, 0, len(s.Ports))
	for ep := range s.Ports {
		eps = append(eps, ep)
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i] < eps[j] })
	return eps, nil
}

func (s *SimBoard) UARTTry(ep Endpoint, baud int) ([]byte, error) {
	s.calls.UARTTry++
	if s.OnUARTTry != nil {
		return s.OnUARTTry(ep, baud)
	}
	port, ok := s.Ports[ep]
	if !ok || port.Baud != baud {
		return nil, nil
	}
	return append([]byte(nil), port.Banner...), nil
}

func (s *SimBoard) I2CScan(sda, scl PinID) ([]int, error) {
	s.calls.I2CScan++
	if s.OnI2CScan != nil {
		return s.OnI2CScan(sda, scl)
	}
	return append([]int(nil), s.I2C[I2CPins{SDA: sda, SCL: scl}]...), nil
}

func (s *SimBoard) SPIXfer(bus SPIPins, tx []byte) ([]byte, error) {
	s.calls.SPIXfer++
	if s.OnSPIXfer != nil {
		return s.OnSPIXfer(bus, tx)
	}
	rx := make([]byte, len(tx))
	id, ok := s.SPI[bus]
	if !ok {
		// Undriven MISO floats high.
		for i := range rx {
			rx[i] = 0xFF
		}
		return rx, nil
	}
	if len(tx) > 0 && tx[0] == 0x9F {
		copy(rx[1:], id[:])
	}
	return rx, nil
}

func (s *SimBoard) JTAGIDCode(tap JTAGPins) (uint32, bool, error) {
	s.calls.JTAGIDCode++
	if s.OnJTAGIDCode != nil {
		return s.OnJTAGIDCode(tap)
	}
	id, ok := s.JTAG[tap]
	return id, ok, nil
}

func (s *SimBoard) IdentifyChips() ([]ChipDescriptor, error) {
	s.calls.Identify++
	return append([]ChipDescriptor(nil), s.Chips...), nil
}
