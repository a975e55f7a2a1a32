package probe

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func pinRange(n int) []PinID {
	pins := make([]PinID, n)
	for i := range pins {
		pins[i] = PinID(string(rune('1' + i)))
	}
	return pins
}

// fullBoard wires one interface of each kind onto six pins.
func fullBoard() *SimBoard {
	b := NewSimBoard(pinRange(6)...)
	b.Ports["/dev/ttyUSB0"] = SimUART{Baud: 57600, Banner: []byte("U-Boot 2020.01\r\n")}
	b.Edges["3"] = []float64{8.68, 8.68, 17.36, 8.68, 8.68}
	b.I2C[I2CPins{SDA: "1", SCL: "2"}] = []int{0x50, 0x51}
	b.SPI[SPIPins{SCLK: "1", MOSI: "2", MISO: "3", CS: "4"}] = [3]byte{0xEF, 0x40, 0x18}
	b.JTAG[JTAGPins{TCK: "6", TMS: "5", TDI: "4", TDO: "3"}] = 0x06438041
	return b
}

func mustProber(t *testing.T, c Capability, cfg *Config) *Prober {
	t.Helper()
	p, err := NewProber(c, cfg, nil)
	if err != nil {
		t.Fatalf("NewProber: %v", err)
	}
	return p
}

func TestRunFindsEveryInterface(t *testing.T) {
	board := fullBoard()
	report := mustProber(t, board, nil).Run("board-1", nil)

	if report.TargetID() != "board-1" {
		t.Fatalf("TargetID = %q", report.TargetID())
	}

	findings := report.Findings()
	wantKinds := []Kind{KindUART, KindUART, KindI2C, KindSPI, KindJTAG}
	if len(findings) != len(wantKinds) {
		t.Fatalf("got %d findings, want %d: %v", len(findings), len(wantKinds), findings)
	}
	for i, k := range wantKinds {
		if findings[i].Kind() != k {
			t.Errorf("finding %d kind = %s, want %s", i, findings[i].Kind(), k)
		}
	}

	host := findings[0]
	if p, _ := host.Pin(RolePort); p != "/dev/ttyUSB0" || host.Confidence() != 0.95 {
		t.Errorf("host uart = %v", host)
	}
	if host.Meta()["baud"] != 57600 {
		t.Errorf("host uart baud = %v, want 57600", host.Meta()["baud"])
	}

	edge := findings[1]
	if p, _ := edge.Pin(RoleRX); p != "3" || edge.Confidence() != 0.7 || edge.Meta()["baud"] != 115200 {
		t.Errorf("edge uart = %v meta=%v", edge, edge.Meta())
	}

	i2c := findings[2]
	if i2c.Confidence() < 0.69 || i2c.Confidence() > 0.71 {
		t.Errorf("i2c confidence = %v, want 0.7", i2c.Confidence())
	}
	if got := i2c.Meta()["addresses"]; !reflect.DeepEqual(got, []string{"0x50", "0x51"}) {
		t.Errorf("i2c addresses = %v", got)
	}

	spi := findings[3]
	if spi.Meta()["jedec"] != "ef4018" || spi.Meta()["manufacturer"] != "Winbond" {
		t.Errorf("spi meta = %v", spi.Meta())
	}

	jtag := findings[4]
	if jtag.Meta()["idcode"] != "0x06438041" || jtag.Meta()["manufacturer"] != "STMicroelectronics" {
		t.Errorf("jtag meta = %v", jtag.Meta())
	}

	results := report.Results()
	if len(results) != len(Strategies) {
		t.Fatalf("got %d strategy results, want %d", len(results), len(Strategies))
	}
	for i, res := range results {
		if res.Strategy != Strategies[i] || res.Outcome != OutcomeFound {
			t.Errorf("result %d = %v", i, res)
		}
	}
	if results[3].Attempts != 1 {
		t.Errorf("spi attempts = %d, want 1 (first tuple)", results[3].Attempts)
	}
	if results[4].Attempts != 360 {
		t.Errorf("jtag attempts = %d, want 360", results[4].Attempts)
	}
}

func TestRunHostUARTStopsBothLoops(t *testing.T) {
	board := NewSimBoard()
	board.Ports["/dev/ttyA"] = SimUART{Baud: 115200, Banner: []byte("login:")}
	board.Ports["/dev/ttyB"] = SimUART{Baud: 115200, Banner: []byte("login:")}

	report := mustProber(t, board, nil).Run("t", nil)

	if got := board.Calls().UARTTry; got != 1 {
		t.Fatalf("UARTTry called %d times, want 1", got)
	}
	if uarts := report.FindingsOf(KindUART); len(uarts) != 1 {
		t.Fatalf("got %d uart findings, want 1", len(uarts))
	}
}

func TestRunHostUARTBaudOrder(t *testing.T) {
	board := NewSimBoard()
	var tried []int
	board.Ports["/dev/ttyS0"] = SimUART{}
	board.OnUARTTry = func(_ Endpoint, baud int) ([]byte, error) {
		tried = append(tried, baud)
		return nil, nil
	}
	mustProber(t, board, nil).Run("t", nil)

	want := []int{115200, 57600, 38400, 19200, 9600}
	if !reflect.DeepEqual(tried, want) {
		t.Fatalf("baud order = %v, want %v", tried, want)
	}
}

func TestRunSPIAttemptCap(t *testing.T) {
	board := NewSimBoard(pinRange(8)...)
	report := mustProber(t, board, nil).Run("t", nil)

	if got := board.Calls().SPIXfer; got != 400 {
		t.Fatalf("SPIXfer called %d times, want 400", got)
	}
	res := report.Results()[3]
	if res.Strategy != StrategySPI || res.Outcome != OutcomeExhausted || res.Attempts != 400 {
		t.Fatalf("spi result = %v", res)
	}
}

func TestRunJTAGAttemptCap(t *testing.T) {
	board := NewSimBoard(pinRange(8)...)
	report := mustProber(t, board, nil).Run("t", nil)

	if got := board.Calls().JTAGIDCode; got != 800 {
		t.Fatalf("JTAGIDCode called %d times, want 800", got)
	}
	if res := report.Results()[4]; res.Outcome != OutcomeExhausted {
		t.Fatalf("jtag result = %v", res)
	}
}

func TestRunSmallPinSetIsNotExhausted(t *testing.T) {
	// 6 pins give 6*5*4*3 = 360 tuples, below both caps.
	board := NewSimBoard(pinRange(6)...)
	report := mustProber(t, board, nil).Run("t", nil)

	if got := board.Calls().SPIXfer; got != 360 {
		t.Fatalf("SPIXfer called %d times, want 360", got)
	}
	if res := report.Results()[3]; res.Outcome != OutcomeNoSignal {
		t.Fatalf("spi outcome = %s, want no-signal", res.Outcome)
	}
}

func TestRunI2CNeverUsesSamePin(t *testing.T) {
	board := NewSimBoard("2", "3", "4")
	var pairs [][2]PinID
	board.OnI2CScan = func(sda, scl PinID) ([]int, error) {
		if sda == scl {
			t.Fatalf("I2CScan(%s, %s) attempted", sda, scl)
		}
		pairs = append(pairs, [2]PinID{sda, scl})
		return nil, nil
	}
	mustProber(t, board, nil).Run("t", nil)

	want := [][2]PinID{{"2", "3"}, {"2", "4"}, {"3", "2"}, {"3", "4"}, {"4", "2"}, {"4", "3"}}
	if !reflect.DeepEqual(pairs, want) {
		t.Fatalf("pairs = %v, want %v", pairs, want)
	}
}

func TestRunSPIRejectsFloatingBus(t *testing.T) {
	board := NewSimBoard(pinRange(4)...)
	board.OnSPIXfer = func(bus SPIPins, tx []byte) ([]byte, error) {
		switch bus.CS {
		case "4":
			return []byte{0xFF, 0x00, 0x00, 0x00}, nil // shorted low
		default:
			return []byte{0x00, 0xC2}, nil // too short
		}
	}
	report := mustProber(t, board, nil).Run("t", nil)
	if got := report.FindingsOf(KindSPI); len(got) != 0 {
		t.Fatalf("unexpected spi findings: %v", got)
	}
}

func TestRunJTAGIgnoresZeroIDCode(t *testing.T) {
	board := NewSimBoard(pinRange(4)...)
	board.OnJTAGIDCode = func(JTAGPins) (uint32, bool, error) { return 0, true, nil }
	report := mustProber(t, board, nil).Run("t", nil)
	if got := report.FindingsOf(KindJTAG); len(got) != 0 {
		t.Fatalf("unexpected jtag findings: %v", got)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	first := mustProber(t, fullBoard(), nil).Run("t", nil)
	second := mustProber(t, fullBoard(), nil).Run("t", nil)

	if !reflect.DeepEqual(first.Findings(), second.Findings()) {
		t.Fatalf("findings differ between runs:\n%v\n%v", first.Findings(), second.Findings())
	}
	if !reflect.DeepEqual(first.Logs(), second.Logs()) {
		t.Fatalf("logs differ between runs:\n%v\n%v", first.Logs(), second.Logs())
	}
}

// erroringBackend lists pins but fails every other operation.
type erroringBackend struct {
	pins []PinID
	err  error
}

func (e erroringBackend) ListPins() ([]PinID, error) { return e.pins, nil }
func (e erroringBackend) CaptureEdges(PinID, time.Duration) ([]float64, error) {
	return nil, e.err
}
func (e erroringBackend) UARTPorts() ([]Endpoint, error)       { return []Endpoint{"/dev/x"}, nil }
func (e erroringBackend) UARTTry(Endpoint, int) ([]byte, error) { return nil, e.err }
func (e erroringBackend) I2CScan(PinID, PinID) ([]int, error)   { return nil, e.err }
func (e erroringBackend) SPIXfer(SPIPins, []byte) ([]byte, error) {
	return nil, e.err
}
func (e erroringBackend) JTAGIDCode(JTAGPins) (uint32, bool, error) { return 0, false, e.err }
func (e erroringBackend) IdentifyChips() ([]ChipDescriptor, error) {
	return nil, e.err
}

func TestRunSurvivesErroringBackend(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantLogLine bool
	}{
		{name: "transport", err: &TransportError{Op: "read", Err: ErrTimeout}},
		{name: "plain", err: errors.New("bus fault"), wantLogLine: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustProber(t, erroringBackend{pins: pinRange(6), err: tt.err}, nil)
			report := p.Run("t", nil)

			if len(report.Findings()) != 0 {
				t.Fatalf("unexpected findings: %v", report.Findings())
			}
			results := report.Results()
			if len(results) != len(Strategies) {
				t.Fatalf("got %d results, want %d", len(results), len(Strategies))
			}
			for _, res := range results {
				if res.Outcome != OutcomeNoSignal {
					t.Errorf("%s outcome = %s, want no-signal", res.Strategy, res.Outcome)
				}
				if res.Failures != res.Attempts {
					t.Errorf("%s failures = %d, attempts = %d", res.Strategy, res.Failures, res.Attempts)
				}
			}

			hasErrLine := false
			for _, line := range report.Logs() {
				if strings.Contains(line, "bus fault") && strings.HasPrefix(line, "spi: sclk=") {
					hasErrLine = true
					break
				}
			}
			if hasErrLine != tt.wantLogLine {
				t.Fatalf("per-attempt error line present = %v, want %v", hasErrLine, tt.wantLogLine)
			}

			if chips := p.RunRecon(); chips == nil || len(chips) != 0 {
				t.Fatalf("RunRecon = %#v, want empty slice", chips)
			}
		})
	}
}

// panickingBackend panics on every call.
type panickingBackend struct{}

func (panickingBackend) ListPins() ([]PinID, error)                           { panic("boom") }
func (panickingBackend) CaptureEdges(PinID, time.Duration) ([]float64, error) { panic("boom") }
func (panickingBackend) UARTPorts() ([]Endpoint, error)                       { panic("boom") }
func (panickingBackend) UARTTry(Endpoint, int) ([]byte, error)                { panic("boom") }
func (panickingBackend) I2CScan(PinID, PinID) ([]int, error)                  { panic("boom") }
func (panickingBackend) SPIXfer(SPIPins, []byte) ([]byte, error)              { panic("boom") }
func (panickingBackend) JTAGIDCode(JTAGPins) (uint32, bool, error)            { panic("boom") }
func (panickingBackend) IdentifyChips() ([]ChipDescriptor, error)             { panic("boom") }

func TestRunSurvivesPanickingBackend(t *testing.T) {
	p := mustProber(t, panickingBackend{}, nil)
	report := p.Run("t", nil)

	logs := report.Logs()
	if len(logs) == 0 || !strings.HasPrefix(logs[0], "Failed to list pins") {
		t.Fatalf("logs = %v", logs)
	}
	if len(report.Findings()) != 0 {
		t.Fatalf("unexpected findings")
	}
	if chips := p.RunRecon(); len(chips) != 0 {
		t.Fatalf("RunRecon = %v", chips)
	}
}

func TestRunSkipStrategies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipStrategies = []string{StrategySPI, StrategyJTAG}
	board := fullBoard()
	report := mustProber(t, board, cfg).Run("t", nil)

	if board.Calls().SPIXfer != 0 || board.Calls().JTAGIDCode != 0 {
		t.Fatalf("skipped strategies were run: %+v", board.Calls())
	}
	if got := len(report.Results()); got != 3 {
		t.Fatalf("got %d results, want 3", got)
	}
}

type memRecorder struct {
	findings []Finding
	logs     []string
}

func (m *memRecorder) RecordFinding(_ string, f Finding) error {
	m.findings = append(m.findings, f)
	return nil
}

func (m *memRecorder) RecordLog(_ string, line string) error {
	m.logs = append(m.logs, line)
	return errors.New("disk full") // must not affect the run
}

func TestRunFeedsRecorder(t *testing.T) {
	rec := &memRecorder{}
	report := mustProber(t, fullBoard(), nil).Run("t", rec)

	if !reflect.DeepEqual(rec.findings, report.Findings()) {
		t.Fatalf("recorder findings differ from report")
	}
	if !reflect.DeepEqual(rec.logs, report.Logs()) {
		t.Fatalf("recorder logs differ from report")
	}
}

func TestRunRecon(t *testing.T) {
	board := fullBoard()
	board.Chips = []ChipDescriptor{{Type: "spi", Vendor: "Winbond", Name: "W25Q128"}}
	chips := mustProber(t, board, nil).RunRecon()
	if len(chips) != 1 || chips[0].Name != "W25Q128" {
		t.Fatalf("RunRecon = %v", chips)
	}
}

func TestRunReconUnsupported(t *testing.T) {
	// Hide IdentifyChips behind an interface value that only carries Capability.
	var c Capability = struct{ Capability }{fullBoard()}
	chips := mustProber(t, c, nil).RunRecon()
	if chips == nil || len(chips) != 0 {
		t.Fatalf("RunRecon = %#v, want empty slice", chips)
	}
}

func TestNewProberRejectsBadConfig(t *testing.T) {
	if _, err := NewProber(nil, nil, nil); !IsConfig(err) {
		t.Fatalf("nil backend error = %v, want ConfigError", err)
	}

	cfg := DefaultConfig()
	cfg.SPIMaxAttempts = -1
	if _, err := NewProber(NewSimBoard(), cfg, nil); !IsConfig(err) {
		t.Fatalf("negative budget error = %v, want ConfigError", err)
	}

	cfg = DefaultConfig()
	cfg.SkipStrategies = []string{"can-bus"}
	if _, err := NewProber(NewSimBoard(), cfg, nil); !IsConfig(err) {
		t.Fatalf("unknown strategy error = %v, want ConfigError", err)
	}
}
