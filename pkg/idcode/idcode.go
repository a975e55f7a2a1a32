// Package idcode decodes identification values read from unknown chips:
// IEEE 1149.1 JTAG IDCODEs and SPI flash JEDEC Read-ID manufacturer bytes,
// both of which name their vendor through the JEP106 registry.
package idcode

import "fmt"

// IDCode is a decoded 32-bit JTAG IDCODE.
//
//	[31:28] version  [27:12] part  [11:1] manufacturer  [0] marker
type IDCode struct {
	Raw     uint32
	Version uint8
	Part    uint16
	Mfg     uint16 // JEP106 bank in [10:7], identity in [6:0]
	Marker  bool   // bit 0; always set in a real IDCODE
}

// Parse splits raw into its fields without judging it.
func Parse(raw uint32) IDCode {
	return IDCode{
		Raw:     raw,
		Version: uint8(raw >> 28),
		Part:    uint16(raw >> 12),
		Mfg:     uint16(raw>>1) & 0x7FF,
		Marker:  raw&1 == 1,
	}
}

// Valid reports whether the IDCODE is well formed: bit 0 set and not the
// all-ones pattern a floating TDO produces.
func (id IDCode) Valid() bool {
	return id.Marker && id.Raw != 0xFFFFFFFF
}

// Manufacturer resolves the vendor field.
func (id IDCode) Manufacturer() (Manufacturer, bool) {
	return LookupManufacturer(id.Mfg)
}

// String formats the IDCODE with its decoded fields.
func (id IDCode) String() string {
	m, _ := id.Manufacturer()
	return fmt.Sprintf("0x%08X (Mfg: %s, Part: 0x%04X, Ver: %d)", id.Raw, m.Name, id.Part, id.Version)
}
