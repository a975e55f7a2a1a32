package idcode

// LookupJEDEC resolves the manufacturer byte returned by an SPI flash JEDEC
// Read-ID (0x9F). The byte carries an odd-parity bit in bit 7, which is
// stripped; only bank-0 manufacturers can be named this way.
func LookupJEDEC(b byte) Manufacturer {
	m, _ := LookupManufacturer(uint16(b & 0x7F))
	return m
}
