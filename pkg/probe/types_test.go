package probe

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewFindingValidation(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		pins    map[Role]PinID
		conf    float64
		wantErr string
	}{
		{
			name: "uart port",
			kind: KindUART,
			pins: map[Role]PinID{RolePort: "/dev/ttyUSB0"},
			conf: 0.95,
		},
		{
			name: "uart rx",
			kind: KindUART,
			pins: map[Role]PinID{RoleRX: "4"},
			conf: 0.7,
		},
		{
			name:    "uart with both roles",
			kind:    KindUART,
			pins:    map[Role]PinID{RoleRX: "4", RolePort: "x"},
			conf:    0.7,
			wantErr: "has roles",
		},
		{
			name:    "i2c missing scl",
			kind:    KindI2C,
			pins:    map[Role]PinID{RoleSDA: "2"},
			conf:    0.5,
			wantErr: "has roles",
		},
		{
			name:    "spi duplicate pin",
			kind:    KindSPI,
			pins:    map[Role]PinID{RoleSCLK: "1", RoleMOSI: "2", RoleMISO: "2", RoleCS: "3"},
			conf:    0.9,
			wantErr: "uses pin 2",
		},
		{
			name:    "confidence above ceiling",
			kind:    KindJTAG,
			pins:    map[Role]PinID{RoleTCK: "1", RoleTMS: "2", RoleTDI: "3", RoleTDO: "4"},
			conf:    1.0,
			wantErr: "outside",
		},
		{
			name:    "unknown kind",
			kind:    "can",
			pins:    map[Role]PinID{},
			conf:    0.5,
			wantErr: "unknown finding kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFinding(tt.kind, tt.pins, tt.conf, nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFindingIsImmutable(t *testing.T) {
	pins := map[Role]PinID{RoleSDA: "2", RoleSCL: "3"}
	meta := map[string]any{"addresses": []string{"0x50"}}
	f, err := NewFinding(KindI2C, pins, 0.55, meta)
	if err != nil {
		t.Fatalf("NewFinding: %v", err)
	}

	pins[RoleSDA] = "9"
	meta["extra"] = true
	got := f.Pins()
	got[RoleSCL] = "9"

	if p, _ := f.Pin(RoleSDA); p != "2" {
		t.Fatalf("sda changed through constructor argument: %s", p)
	}
	if p, _ := f.Pin(RoleSCL); p != "3" {
		t.Fatalf("scl changed through accessor copy: %s", p)
	}
	if _, ok := f.Meta()["extra"]; ok {
		t.Fatalf("meta changed through constructor argument")
	}

	meta["addresses"].([]string)[0] = "0x51"
	f.Meta()["addresses"].([]string)[0] = "0xff"
	if got := f.Meta()["addresses"].([]string); got[0] != "0x50" {
		t.Fatalf("addresses = %v after mutating copies", got)
	}
}

func TestFindingMetaNestedValues(t *testing.T) {
	nested := map[string]any{
		"jedec": []byte{0xef, 0x40, 0x18},
		"info":  map[string]any{"bus": []any{"spi", 1}},
	}
	f, err := NewFinding(KindI2C, map[Role]PinID{RoleSDA: "2", RoleSCL: "3"}, 0.55, nested)
	if err != nil {
		t.Fatalf("NewFinding: %v", err)
	}

	nested["jedec"].([]byte)[0] = 0
	nested["info"].(map[string]any)["bus"].([]any)[0] = "i2c"

	out := f.Meta()
	out["info"].(map[string]any)["extra"] = true

	got := f.Meta()
	if jedec := got["jedec"].([]byte); jedec[0] != 0xef {
		t.Errorf("jedec = %x", jedec)
	}
	info := got["info"].(map[string]any)
	if bus := info["bus"].([]any); bus[0] != "spi" || bus[1] != 1 {
		t.Errorf("bus = %v", bus)
	}
	if _, ok := info["extra"]; ok {
		t.Errorf("nested map changed through accessor copy")
	}
}

func TestReportFindingsStayUnchanged(t *testing.T) {
	board := NewSimBoard("1", "2", "3")
	board.I2C[I2CPins{SDA: "1", SCL: "2"}] = []int{0x50, 0x68}
	p, err := NewProber(board, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	rep := p.Run("board", nil)

	found := rep.FindingsOf(KindI2C)
	if len(found) != 1 {
		t.Fatalf("i2c findings = %v", found)
	}
	addrs, ok := found[0].Meta()["addresses"].([]string)
	if !ok || len(addrs) == 0 {
		t.Fatalf("meta = %v", found[0].Meta())
	}
	want := addrs[0]
	addrs[0] = "0xff"

	if got := rep.FindingsOf(KindI2C)[0].Meta()["addresses"].([]string)[0]; got != want {
		t.Fatalf("addresses[0] = %s after changing a copy, want %s", got, want)
	}
}

func TestFindingJSON(t *testing.T) {
	f, err := NewFinding(KindUART, map[Role]PinID{RoleRX: "5"}, 0.7, map[string]any{"baud": 9600})
	if err != nil {
		t.Fatalf("NewFinding: %v", err)
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"kind":"uart","pins":{"rx":"5"},"confidence":0.7,"meta":{"baud":9600}}`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}
}
