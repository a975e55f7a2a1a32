package probe

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/heuristics"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/idcode"
)

// jedecReadID is the SPI flash "Read Identification" opcode followed by three
// dummy bytes clocking out manufacturer, memory type and capacity.
var jedecReadID = []byte{0x9F, 0x00, 0x00, 0x00}

// hostUART tries each host endpoint at each baud until one answers.
func (r *run) hostUART(_ []PinID) StrategyResult {
	res := StrategyResult{Strategy: StrategyHostUART}

	ports, err := call("uart_ports", r.cap.UARTPorts)
	if err != nil {
		r.failure(&res, "listing ports", err)
		res.Outcome = OutcomeNoSignal
		return res
	}

	for _, ep := range ports {
		for _, baud := range r.cfg.Bauds {
			res.Attempts++
			data, err := call("uart_try", func() ([]byte, error) { return r.cap.UARTTry(ep, baud) })
			if err != nil {
				r.failure(&res, fmt.Sprintf("%s@%d", ep, baud), err)
				continue
			}
			if len(data) == 0 {
				continue
			}
			meta := map[string]any{
				"baud":   baud,
				"sample": strings.ToValidUTF8(string(data), "�"),
			}
			return r.found(res, KindUART, map[Role]PinID{RolePort: PinID(ep)},
				heuristics.HostUARTConfidence, meta,
				"Detected UART at %s @ %d", ep, baud)
		}
	}

	res.Outcome = OutcomeNoSignal
	return res
}

// edgeUART captures edges on each pin and looks for a plausible bit period.
func (r *run) edgeUART(pins []PinID) StrategyResult {
	res := StrategyResult{Strategy: StrategyEdgeUART}

	for _, pin := range pins {
		res.Attempts++
		edges, err := call("capture_edges", func() ([]float64, error) {
			return r.cap.CaptureEdges(pin, r.cfg.EdgeWindow)
		})
		if err != nil {
			r.failure(&res, string(pin), err)
			continue
		}
		baud, ok := heuristics.EstimateBaud(edges)
		if !ok {
			continue
		}
		return r.found(res, KindUART, map[Role]PinID{RoleRX: pin},
			heuristics.EdgeUARTConfidence, map[string]any{"baud": baud},
			"UART candidate on pin %s ~%d", pin, baud)
	}

	res.Outcome = OutcomeNoSignal
	return res
}

// i2c scans every ordered (sda, scl) pair of distinct pins.
func (r *run) i2c(pins []PinID) StrategyResult {
	res := StrategyResult{Strategy: StrategyI2C}
	budget := NewBudget(r.cfg.I2CMaxAttempts)

	for _, sda := range pins {
		for _, scl := range pins {
			if sda == scl {
				continue
			}
			if !budget.Take() {
				res.Outcome = OutcomeExhausted
				return res
			}
			res.Attempts = budget.Used()

			addrs, err := call("i2c_scan", func() ([]int, error) { return r.cap.I2CScan(sda, scl) })
			if err != nil {
				r.failure(&res, fmt.Sprintf("sda=%s scl=%s", sda, scl), err)
				continue
			}
			if len(addrs) == 0 {
				continue
			}

			hexAddrs := make([]string, len(addrs))
			for i, a := range addrs {
				hexAddrs[i] = fmt.Sprintf("0x%02x", a)
			}
			return r.found(res, KindI2C, map[Role]PinID{RoleSDA: sda, RoleSCL: scl},
				heuristics.ConfidenceFromCount(len(addrs)),
				map[string]any{"addresses": hexAddrs},
				"I2C found on sda=%s,scl=%s -> %s", sda, scl, strings.Join(hexAddrs, ","))
		}
	}

	res.Outcome = OutcomeNoSignal
	return res
}

// spi sends a JEDEC Read-ID to every 4-tuple of distinct pins until a flash
// answers or the budget runs out.
func (r *run) spi(pins []PinID) StrategyResult {
	res := StrategyResult{Strategy: StrategySPI}
	budget := NewBudget(r.cfg.SPIMaxAttempts)

	for _, sclk := range pins {
		for _, mosi := range pins {
			if mosi == sclk {
				continue
			}
			for _, miso := range pins {
				if miso == sclk || miso == mosi {
					continue
				}
				for _, cs := range pins {
					if cs == sclk || cs == mosi || cs == miso {
						continue
					}
					if !budget.Take() {
						res.Outcome = OutcomeExhausted
						return res
					}
					res.Attempts = budget.Used()

					bus := SPIPins{SCLK: sclk, MOSI: mosi, MISO: miso, CS: cs}
					tx := append([]byte(nil), jedecReadID...)
					resp, err := call("spi_xfer", func() ([]byte, error) { return r.cap.SPIXfer(bus, tx) })
					if err != nil {
						r.failure(&res, bus.String(), err)
						continue
					}
					if !isJEDECResponse(resp) {
						continue
					}

					jedec := hex.EncodeToString(resp[1:4])
					meta := map[string]any{
						"jedec":        jedec,
						"manufacturer": idcode.LookupJEDEC(resp[1]).Name,
					}
					return r.found(res, KindSPI, bus.Roles(), heuristics.SPIConfidence, meta,
						"SPI JEDEC %s at %s", jedec, bus)
				}
			}
		}
	}

	res.Outcome = OutcomeNoSignal
	return res
}

// isJEDECResponse reports whether a Read-ID response carries a manufacturer
// byte. Floating or shorted MISO lines read as all zeros or all ones.
func isJEDECResponse(resp []byte) bool {
	return len(resp) >= 4 && resp[1] != 0x00 && resp[1] != 0xFF
}

// jtag requests an IDCODE through every 4-tuple of distinct pins until a TAP
// answers or the budget runs out.
func (r *run) jtag(pins []PinID) StrategyResult {
	res := StrategyResult{Strategy: StrategyJTAG}
	budget := NewBudget(r.cfg.JTAGMaxAttempts)

	type idResult struct {
		id uint32
		ok bool
	}

	for _, tck := range pins {
		for _, tms := range pins {
			if tms == tck {
				continue
			}
			for _, tdi := range pins {
				if tdi == tck || tdi == tms {
					continue
				}
				for _, tdo := range pins {
					if tdo == tck || tdo == tms || tdo == tdi {
						continue
					}
					if !budget.Take() {
						res.Outcome = OutcomeExhausted
						return res
					}
					res.Attempts = budget.Used()

					tap := JTAGPins{TCK: tck, TMS: tms, TDI: tdi, TDO: tdo}
					got, err := call("jtag_idcode", func() (idResult, error) {
						id, ok, err := r.cap.JTAGIDCode(tap)
						return idResult{id, ok}, err
					})
					if err != nil {
						r.failure(&res, tap.String(), err)
						continue
					}
					// A TAP that shifts out zeros is indistinguishable from
					// an unconnected TDO.
					if !got.ok || got.id == 0 {
						continue
					}

					id := idcode.Parse(got.id)
					m, _ := id.Manufacturer()
					meta := map[string]any{
						"idcode":       fmt.Sprintf("0x%08x", got.id),
						"manufacturer": m.Name,
						"part":         fmt.Sprintf("0x%04x", id.Part),
						"version":      int(id.Version),
					}
					if p, ok := idcode.LookupPart(id); ok {
						meta["device"] = p.Name
						meta["core"] = p.Core
					}
					return r.found(res, KindJTAG, tap.Roles(), heuristics.JTAGConfidence, meta,
						"JTAG IDCODE 0x%08x found at %s", got.id, tap)
				}
			}
		}
	}

	res.Outcome = OutcomeNoSignal
	return res
}
