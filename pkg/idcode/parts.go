package idcode

// Part describes a known TAP.
type Part struct {
	Name   string
	Family string
	Core   string
}

type partKey struct {
	mfg  uint16
	part uint16
}

const (
	mfgARM = 4<<7 | 0x3B
	mfgST  = 0x20
)

// parts maps manufacturer and part number to a device. Version is ignored:
// silicon revisions share a part number.
var parts = map[partKey]Part{
	{mfgARM, 0xBA00}: {Name: "ARM JTAG-DP", Family: "CoreSight", Core: "Cortex-M3/M4"},
	{mfgARM, 0xBA01}: {Name: "ARM SW-DP", Family: "CoreSight", Core: "Cortex-M0/M0+"},
	{mfgARM, 0xBA02}: {Name: "ARM SW-DP", Family: "CoreSight", Core: "Cortex-M23/M33"},
	{mfgARM, 0xBA04}: {Name: "ARM JTAG-DP", Family: "CoreSight", Core: "Cortex-M33"},
	{mfgARM, 0xBA05}: {Name: "ARM JTAG-DP", Family: "CoreSight", Core: "Cortex-M55"},

	{mfgST, 0x6410}: {Name: "STM32F10x medium-density", Family: "STM32F1", Core: "Cortex-M3"},
	{mfgST, 0x6412}: {Name: "STM32F10x low-density", Family: "STM32F1", Core: "Cortex-M3"},
	{mfgST, 0x6414}: {Name: "STM32F10x high-density", Family: "STM32F1", Core: "Cortex-M3"},
	{mfgST, 0x6413}: {Name: "STM32F40x/41x", Family: "STM32F4", Core: "Cortex-M4"},
	{mfgST, 0x6438}: {Name: "STM32F303/F334", Family: "STM32F3", Core: "Cortex-M4"},
}

// LookupPart names the device behind an IDCODE, when known.
func LookupPart(id IDCode) (Part, bool) {
	p, ok := parts[partKey{id.Mfg, id.Part}]
	return p, ok
}
