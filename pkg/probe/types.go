package probe

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/heuristics"
)

// PinID identifies one addressable pin of a backend. Values are opaque to the
// prober; probe heads report GPIO numbers and they travel as decimal text.
type PinID string

// Endpoint names a host-visible serial endpoint, such as /dev/ttyUSB0.
type Endpoint string

// Kind is the interface family a Finding describes.
type Kind string

const (
	KindUART Kind = "uart"
	KindI2C  Kind = "i2c"
	KindSPI  Kind = "spi"
	KindJTAG Kind = "jtag"
)

// Role names the function a pin plays within a Finding.
type Role string

const (
	RolePort Role = "port"
	RoleRX   Role = "rx"
	RoleSDA  Role = "sda"
	RoleSCL  Role = "scl"
	RoleSCLK Role = "sclk"
	RoleMOSI Role = "mosi"
	RoleMISO Role = "miso"
	RoleCS   Role = "cs"
	RoleTCK  Role = "tck"
	RoleTMS  Role = "tms"
	RoleTDI  Role = "tdi"
	RoleTDO  Role = "tdo"
)

// roleSets lists the accepted role sets per kind. UART has two: a host
// endpoint ({port}) or a sniffed board pin ({rx}).
var roleSets = map[Kind][][]Role{
	KindUART: {{RolePort}, {RoleRX}},
	KindI2C:  {{RoleSDA, RoleSCL}},
	KindSPI:  {{RoleSCLK, RoleMOSI, RoleMISO, RoleCS}},
	KindJTAG: {{RoleTCK, RoleTMS, RoleTDI, RoleTDO}},
}

// SPIPins is one candidate SPI wiring.
type SPIPins struct {
	SCLK, MOSI, MISO, CS PinID
}

// Roles returns the wiring as a role map.
func (p SPIPins) Roles() map[Role]PinID {
	return map[Role]PinID{RoleSCLK: p.SCLK, RoleMOSI: p.MOSI, RoleMISO: p.MISO, RoleCS: p.CS}
}

func (p SPIPins) String() string {
	return fmt.Sprintf("sclk=%s mosi=%s miso=%s cs=%s", p.SCLK, p.MOSI, p.MISO, p.CS)
}

// JTAGPins is one candidate JTAG TAP wiring.
type JTAGPins struct {
	TCK, TMS, TDI, TDO PinID
}

// Roles returns the wiring as a role map.
func (p JTAGPins) Roles() map[Role]PinID {
	return map[Role]PinID{RoleTCK: p.TCK, RoleTMS: p.TMS, RoleTDI: p.TDI, RoleTDO: p.TDO}
}

func (p JTAGPins) String() string {
	return fmt.Sprintf("tck=%s tms=%s tdi=%s tdo=%s", p.TCK, p.TMS, p.TDI, p.TDO)
}

// Finding is one positive detection. It is immutable: fields are only
// reachable through accessors that return copies.
type Finding struct {
	kind       Kind
	pins       map[Role]PinID
	confidence float64
	meta       map[string]any
}

// NewFinding validates and builds a Finding. The role set must match the
// kind, pins must be pairwise distinct and confidence must lie in [0, 0.95].
func NewFinding(kind Kind, pins map[Role]PinID, confidence float64, meta map[string]any) (Finding, error) {
	sets, ok := roleSets[kind]
	if !ok {
		return Finding{}, fmt.Errorf("probe: unknown finding kind %q", kind)
	}
	if !matchesRoleSet(pins, sets) {
		return Finding{}, fmt.Errorf("probe: %s finding has roles %v", kind, sortedRoles(pins))
	}

	seen := make(map[PinID]Role, len(pins))
	for role, pin := range pins {
		if other, dup := seen[pin]; dup {
			return Finding{}, fmt.Errorf("probe: %s finding uses pin %s for both %s and %s", kind, pin, other, role)
		}
		seen[pin] = role
	}

	if confidence < 0 || confidence > heuristics.MaxConfidence {
		return Finding{}, fmt.Errorf("probe: confidence %.2f outside [0, %.2f]", confidence, heuristics.MaxConfidence)
	}

	f := Finding{
		kind:       kind,
		pins:       make(map[Role]PinID, len(pins)),
		confidence: confidence,
		meta:       make(map[string]any, len(meta)),
	}
	for r, p := range pins {
		f.pins[r] = p
	}
	for k, v := range meta {
		f.meta[k] = cloneValue(v)
	}
	return f, nil
}

// cloneValue copies slices and maps all the way down so that no caller
// shares storage with a Finding. Other values are returned as is.
func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	return cloneReflect(reflect.ValueOf(v)).Interface()
}

func cloneReflect(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneReflect(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneReflect(iter.Value()))
		}
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		inner := cloneReflect(v.Elem())
		out := reflect.New(v.Type()).Elem()
		out.Set(inner)
		return out
	}
	return v
}

func matchesRoleSet(pins map[Role]PinID, sets [][]Role) bool {
	for _, set := range sets {
		if len(set) != len(pins) {
			continue
		}
		all := true
		for _, r := range set {
			if _, ok := pins[r]; !ok {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func sortedRoles(pins map[Role]PinID) []string {
	out := make([]string, 0, len(pins))
	for r := range pins {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// Kind returns the interface family.
func (f Finding) Kind() Kind { return f.kind }

// Confidence returns the heuristic confidence in [0, 0.95].
func (f Finding) Confidence() float64 { return f.confidence }

// Pin returns the pin assigned to role.
func (f Finding) Pin(role Role) (PinID, bool) {
	p, ok := f.pins[role]
	return p, ok
}

// Pins returns a copy of the role assignment.
func (f Finding) Pins() map[Role]PinID {
	out := make(map[Role]PinID, len(f.pins))
	for r, p := range f.pins {
		out[r] = p
	}
	return out
}

// Meta returns a deep copy of the metadata.
func (f Finding) Meta() map[string]any {
	out := make(map[string]any, len(f.meta))
	for k, v := range f.meta {
		out[k] = cloneValue(v)
	}
	return out
}

// String renders the finding for logs.
func (f Finding) String() string {
	roles := sortedRoles(f.pins)
	s := string(f.kind)
	for _, r := range roles {
		s += fmt.Sprintf(" %s=%s", r, f.pins[Role(r)])
	}
	return fmt.Sprintf("%s (confidence %.2f)", s, f.confidence)
}

type findingJSON struct {
	Kind       Kind           `json:"kind"`
	Pins       map[Role]PinID `json:"pins"`
	Confidence float64        `json:"confidence"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// MarshalJSON encodes the finding as {"kind","pins","confidence","meta"}.
func (f Finding) MarshalJSON() ([]byte, error) {
	return json.Marshal(findingJSON{
		Kind:       f.kind,
		Pins:       f.pins,
		Confidence: f.confidence,
		Meta:       f.meta,
	})
}

// ChipDescriptor is one chip-identification hint.
type ChipDescriptor struct {
	Type    string         `json:"type"`
	Vendor  string         `json:"vendor,omitempty"`
	Name    string         `json:"name,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
