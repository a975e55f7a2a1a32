package probehead

import (
	"io"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/link"
)

// Dump verbs understood by the head.
const (
	VerbSPIDump  = "SPI_DUMP"
	VerbI2CDump  = "I2C_DUMP"
	VerbJTAGDump = "JTAG_DUMP"
)

// Glitch verbs understood by the head.
const (
	VerbGlitchVoltage = "GLITCH_V"
	VerbGlitchClock   = "GLITCH_C"
	VerbGlitchReset   = "GLITCH_R"
)

// DumpSPI streams the image of the flash on the head's SPI port into w.
func (r *Remote) DumpSPI(w io.Writer) (link.StreamResult, error) {
	return r.client.Stream(link.NewCommand(VerbSPIDump), w, r.timeouts.Dump)
}

// DumpI2C streams the EEPROM on the head's I2C port into w.
func (r *Remote) DumpI2C(w io.Writer) (link.StreamResult, error) {
	return r.client.Stream(link.NewCommand(VerbI2CDump), w, r.timeouts.Dump)
}

// DumpJTAG streams target memory read through the head's JTAG port into w.
func (r *Remote) DumpJTAG(w io.Writer) (link.StreamResult, error) {
	return r.client.Stream(link.NewCommand(VerbJTAGDump), w, r.timeouts.Dump)
}

func (r *Remote) GlitchVoltage(pulseNS, delayNS int) (map[string]any, error) {
	return r.glitch(VerbGlitchVoltage, pulseNS, delayNS)
}

func (r *Remote) GlitchClock(pulseNS, delayNS int) (map[string]any, error) {
	return r.glitch(VerbGlitchClock, pulseNS, delayNS)
}

func (r *Remote) GlitchReset(pulseNS, delayNS int) (map[string]any, error) {
	return r.glitch(VerbGlitchReset, pulseNS, delayNS)
}

func (r *Remote) glitch(verb string, pulseNS, delayNS int) (map[string]any, error) {
	resp, err := r.do(link.NewCommand(verb, pulseNS, delayNS), r.timeouts.Glitch)
	if err != nil {
		return nil, err
	}
	return resp.Map(), nil
}
