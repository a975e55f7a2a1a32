package probehead

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// HeadKind categorizes discovered probe heads.
type HeadKind string

const (
	HeadKindPico       HeadKind = "pico"
	HeadKindBootloader HeadKind = "bootloader"
	HeadKindSim        HeadKind = "simulator"
)

// HeadInfo describes a probe head found on the host.
type HeadInfo struct {
	Kind        HeadKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Path        string
}

// Label returns a user-friendly description of the head.
func (h HeadInfo) Label() string {
	if h.Description != "" {
		return h.Description
	}
	return fmt.Sprintf("%s (%04X:%04X)", h.Kind, h.VendorID, h.ProductID)
}

// DiscoverProbeHeads enumerates USB devices matching known probe-head
// VID:PID pairs. The simulator entry is always appended so the tool can run
// without hardware.
func DiscoverProbeHeads(ctx context.Context) ([]HeadInfo, error) {
	var results []HeadInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, fmt.Errorf("probehead: usb enumeration: %w", err)
	}

	results = append(results, HeadInfo{
		Kind:        HeadKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (HeadInfo, bool) {
	for _, known := range knownHeads {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return HeadInfo{
				Kind:        known.Kind,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
				Path:        fmt.Sprintf("usb:%d/%d", desc.Bus, desc.Address),
			}, true
		}
	}
	return HeadInfo{}, false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Kind        HeadKind
	Description string
}

const vendorRaspberryPi = 0x2e8a

var knownHeads = []knownUSBDevice{
	{VendorID: vendorRaspberryPi, ProductID: 0x0005, Kind: HeadKindPico, Description: "Raspberry Pi Pico (MicroPython)"},
	{VendorID: vendorRaspberryPi, ProductID: 0x000a, Kind: HeadKindPico, Description: "Raspberry Pi Pico (CDC)"},
	{VendorID: vendorRaspberryPi, ProductID: 0x000c, Kind: HeadKindPico, Description: "Raspberry Pi Debug Probe"},
	{VendorID: vendorRaspberryPi, ProductID: 0x0003, Kind: HeadKindBootloader, Description: "RP2040 in BOOTSEL mode (flash firmware first)"},
}
