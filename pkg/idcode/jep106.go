package idcode

import "fmt"

// Manufacturer is one JEP106 registry entry. Bank counts the 0x7F
// continuation bytes that precede ID on the wire.
type Manufacturer struct {
	Bank  uint8
	ID    uint8
	Name  string
	Short string
}

// Code returns the 11-bit form carried in an IDCODE.
func (m Manufacturer) Code() uint16 {
	return uint16(m.Bank)<<7 | uint16(m.ID&0x7F)
}

// registry holds the vendors commonly met on embedded boards, with the
// parity bit already stripped from ID.
var registry = []Manufacturer{
	{Bank: 0, ID: 0x01, Name: "AMD / Spansion", Short: "AMD"},
	{Bank: 0, ID: 0x04, Name: "Fujitsu", Short: "Fujitsu"},
	{Bank: 0, ID: 0x09, Name: "Intel", Short: "Intel"},
	{Bank: 0, ID: 0x0E, Name: "Freescale (Motorola)", Short: "Freescale"},
	{Bank: 0, ID: 0x15, Name: "NXP (Philips)", Short: "NXP"},
	{Bank: 0, ID: 0x17, Name: "Texas Instruments", Short: "TI"},
	{Bank: 0, ID: 0x18, Name: "Toshiba", Short: "Toshiba"},
	{Bank: 0, ID: 0x1C, Name: "Mitsubishi", Short: "Mitsubishi"},
	{Bank: 0, ID: 0x1F, Name: "Atmel", Short: "Atmel"},
	{Bank: 0, ID: 0x20, Name: "STMicroelectronics", Short: "ST"},
	{Bank: 0, ID: 0x21, Name: "Lattice", Short: "Lattice"},
	{Bank: 0, ID: 0x29, Name: "Microchip", Short: "Microchip"},
	{Bank: 0, ID: 0x2C, Name: "Micron", Short: "Micron"},
	{Bank: 0, ID: 0x2D, Name: "SK hynix", Short: "Hynix"},
	{Bank: 0, ID: 0x34, Name: "Cypress", Short: "Cypress"},
	{Bank: 0, ID: 0x3F, Name: "SST", Short: "SST"},
	{Bank: 0, ID: 0x41, Name: "Infineon", Short: "Infineon"},
	{Bank: 0, ID: 0x42, Name: "Macronix", Short: "MXIC"},
	{Bank: 0, ID: 0x48, Name: "GigaDevice", Short: "GD"},
	{Bank: 0, ID: 0x49, Name: "Xilinx", Short: "Xilinx"},
	{Bank: 0, ID: 0x4E, Name: "Samsung", Short: "Samsung"},
	{Bank: 0, ID: 0x65, Name: "Analog Devices", Short: "ADI"},
	{Bank: 0, ID: 0x6E, Name: "Altera", Short: "Altera"},
	{Bank: 0, ID: 0x6F, Name: "Winbond", Short: "Winbond"},
	{Bank: 1, ID: 0x3F, Name: "Broadcom", Short: "Broadcom"},
	{Bank: 4, ID: 0x3B, Name: "ARM", Short: "ARM"},
	{Bank: 4, ID: 0x72, Name: "Espressif", Short: "Espressif"},
	{Bank: 6, ID: 0x1E, Name: "GigaDevice", Short: "GD"},
	{Bank: 9, ID: 0x09, Name: "SiFive", Short: "SiFive"},
}

var byCode = func() map[uint16]Manufacturer {
	m := make(map[uint16]Manufacturer, len(registry))
	for _, v := range registry {
		m[v.Code()] = v
	}
	return m
}()

// LookupManufacturer resolves an 11-bit JEP106 code. Unknown codes yield a
// placeholder named after the code, and false.
func LookupManufacturer(code uint16) (Manufacturer, bool) {
	code &= 0x7FF
	if m, ok := byCode[code]; ok {
		return m, true
	}
	return Manufacturer{
		Bank:  uint8(code >> 7),
		ID:    uint8(code & 0x7F),
		Name:  fmt.Sprintf("Unknown (0x%03X)", code),
		Short: "Unknown",
	}, false
}
