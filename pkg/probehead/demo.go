package probehead

import (
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

// DemoBoard returns a simulated target with one of each interface, for
// running the tool without hardware.
func DemoBoard() *probe.SimBoard {
	b := probe.NewSimBoard("2", "3", "4", "5", "6", "7", "8", "9")
	b.Ports["/dev/ttyUSB0"] = probe.SimUART{Baud: 115200, Banner: []byte("U-Boot 2023.01 (Jan 09 2023)\r\n=> ")}
	b.Edges["9"] = []float64{8.68, 8.70, 8.66, 17.36, 8.68}
	b.I2C[probe.I2CPins{SDA: "7", SCL: "8"}] = []int{0x50, 0x68}
	b.SPI[probe.SPIPins{SCLK: "2", MOSI: "3", MISO: "4", CS: "5"}] = [3]byte{0xEF, 0x40, 0x18}
	b.JTAG[probe.JTAGPins{TCK: "2", TMS: "6", TDI: "7", TDO: "8"}] = 0x4BA00477
	b.Chips = []probe.ChipDescriptor{
		{Type: "spi-flash", Vendor: "Winbond", Name: "W25Q128", Details: map[string]any{"jedec": "ef4018"}},
		{Type: "eeprom", Vendor: "Microchip", Name: "24LC256", Details: map[string]any{"address": "0x50"}},
	}
	return b
}

// DemoImages returns dump images matching DemoBoard.
func DemoImages() map[string][]byte {
	flash := make([]byte, 64*1024)
	for i := range flash {
		flash[i] = byte(i)
	}
	copy(flash, "\x27\x05\x19\x56UBOOT")

	eeprom := make([]byte, 256)
	for i := range eeprom {
		eeprom[i] = 0xFF
	}
	copy(eeprom, "SN:0001-DEMO")

	return map[string][]byte{
		VerbSPIDump: flash,
		VerbI2CDump: eeprom,
	}
}

// DemoGlitch answers glitches the way an unaffected target would.
func DemoGlitch(verb string, pulseNS, delayNS int) map[string]any {
	return map[string]any{
		"status":   "ok",
		"effect":   "none",
		"pulse_ns": pulseNS,
		"delay_ns": delayNS,
	}
}

// DemoEmulator bundles DemoBoard, DemoImages and DemoGlitch.
func DemoEmulator() *Emulator {
	return &Emulator{
		Board:  DemoBoard(),
		Images: DemoImages(),
		Glitch: DemoGlitch,
	}
}
