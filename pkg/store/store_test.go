package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/dump"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/glitch"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{
		Path: filepath.Join(t.TempDir(), "results", "session.db"),
		Now:  func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRoundTripToJSONExport(t *testing.T) {
	s := openTestStore(t)

	f, err := probe.NewFinding(probe.KindUART, map[probe.Role]probe.PinID{probe.RoleRX: "5"}, 0.7, map[string]any{"baud": 9600})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordFinding("board-a", f); err != nil {
		t.Fatalf("RecordFinding: %v", err)
	}
	if err := s.RecordLog("board-a", "UART candidate on pin 5 ~9600"); err != nil {
		t.Fatalf("RecordLog: %v", err)
	}
	if err := s.RecordChips([]probe.ChipDescriptor{
		{Type: "spi-flash", Vendor: "Winbond", Name: "W25Q128", Details: map[string]any{"jedec": "ef4018"}},
		{Type: "mcu"},
	}); err != nil {
		t.Fatalf("RecordChips: %v", err)
	}
	if err := s.RecordDump(dump.Artifact{Source: "spi", Path: "dumps/spi.bin", Declared: 1000, Size: 400, Digest: "ab", Truncated: true}); err != nil {
		t.Fatalf("RecordDump: %v", err)
	}
	if err := s.RecordGlitch(glitch.Attempt{Kind: glitch.Voltage, PulseNS: 50, DelayNS: 100, Iter: 2, Result: map[string]any{"status": "ok"}}); err != nil {
		t.Fatalf("RecordGlitch: %v", err)
	}

	out := filepath.Join(t.TempDir(), "export", "session.json")
	if err := s.ExportJSON(out); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	var got Session
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}

	if len(got.Probes) != 1 || got.Probes[0].Interface != "uart" || got.Probes[0].Target != "board-a" {
		t.Fatalf("probes = %+v", got.Probes)
	}
	var finding struct {
		Kind string            `json:"kind"`
		Pins map[string]string `json:"pins"`
		Meta map[string]any    `json:"meta"`
	}
	if err := json.Unmarshal(got.Probes[0].Data, &finding); err != nil {
		t.Fatalf("finding data: %v", err)
	}
	if finding.Kind != "uart" || finding.Pins["rx"] != "5" || finding.Meta["baud"] != float64(9600) {
		t.Fatalf("finding = %+v", finding)
	}
	if got.Probes[0].TS != "2026-10-19T12:00:00Z" {
		t.Fatalf("ts = %q", got.Probes[0].TS)
	}

	if len(got.Logs) != 1 || got.Logs[0].Line != "UART candidate on pin 5 ~9600" {
		t.Fatalf("logs = %+v", got.Logs)
	}
	if len(got.Chips) != 2 || got.Chips[0].Name != "W25Q128" || string(got.Chips[1].Details) != "{}" {
		t.Fatalf("chips = %+v", got.Chips)
	}
	if len(got.Dumps) != 1 || !got.Dumps[0].Truncated || got.Dumps[0].Size != 400 || got.Dumps[0].Codec != "none" {
		t.Fatalf("dumps = %+v", got.Dumps)
	}
	if len(got.Glitches) != 1 {
		t.Fatalf("glitches = %+v", got.Glitches)
	}
	var params map[string]any
	if err := json.Unmarshal(got.Glitches[0].Params, &params); err != nil {
		t.Fatal(err)
	}
	if params["kind"] != "voltage" || params["pw_ns"] != float64(50) || params["iter"] != float64(2) {
		t.Fatalf("glitch params = %v", params)
	}
}

func TestEmptyExportHasAllTables(t *testing.T) {
	s := openTestStore(t)
	out := filepath.Join(t.TempDir(), "session.json")
	if err := s.ExportJSON(out); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	raw, _ := os.ReadFile(out)

	var tables map[string][]any
	if err := json.Unmarshal(raw, &tables); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"probes", "logs", "chips", "dumps", "glitches"} {
		rows, ok := tables[name]
		if !ok || rows == nil || len(rows) != 0 {
			t.Errorf("table %s = %v, %v; want empty list", name, rows, ok)
		}
	}
}

func TestStoreAsProbeRecorder(t *testing.T) {
	s := openTestStore(t)

	board := probe.NewSimBoard("1", "2", "3")
	board.I2C[probe.I2CPins{SDA: "1", SCL: "2"}] = []int{0x50}
	p, err := probe.NewProber(board, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	report := p.Run("board-b", s)

	session, err := s.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(session.Probes) != len(report.Findings()) || len(session.Probes) != 1 {
		t.Fatalf("stored %d findings, report has %d", len(session.Probes), len(report.Findings()))
	}
	if len(session.Logs) != len(report.Logs()) {
		t.Fatalf("stored %d log lines, report has %d", len(session.Logs), len(report.Logs()))
	}
	for i, l := range report.Logs() {
		if session.Logs[i].Line != l {
			t.Errorf("log %d = %q, want %q", i, session.Logs[i].Line, l)
		}
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := Open(Options{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordLog("t", "first"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(Options{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	session, err := s.Export()
	if err != nil {
		t.Fatal(err)
	}
	if len(session.Logs) != 1 || session.Logs[0].Line != "first" {
		t.Fatalf("logs after reopen = %+v", session.Logs)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Options{}); !probe.IsConfig(err) {
		t.Fatalf("Open without path = %v, want ConfigError", err)
	}
}
