package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Session is the exported content of a store.
type Session struct {
	Probes   []ProbeRow  `json:"probes"`
	Logs     []LogRow    `json:"logs"`
	Chips    []ChipRow   `json:"chips"`
	Dumps    []DumpRow   `json:"dumps"`
	Glitches []GlitchRow `json:"glitches"`
}

type ProbeRow struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Target     string          `json:"target"`
	Interface  string          `json:"interface"`
	Confidence float64         `json:"confidence"`
	Data       json.RawMessage `json:"data"`
}

type LogRow struct {
	ID     int64  `json:"id"`
	TS     string `json:"ts"`
	Target string `json:"target"`
	Line   string `json:"line"`
}

type ChipRow struct {
	ID      int64           `json:"id"`
	TS      string          `json:"ts"`
	Type    string          `json:"type"`
	Vendor  string          `json:"vendor"`
	Name    string          `json:"name"`
	Details json.RawMessage `json:"details"`
}

type DumpRow struct {
	ID        int64  `json:"id"`
	TS        string `json:"ts"`
	Source    string `json:"source"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Declared  int64  `json:"declared"`
	Digest    string `json:"blake3"`
	Truncated bool   `json:"truncated"`
	Codec     string `json:"codec"`
}

type GlitchRow struct {
	ID     int64           `json:"id"`
	TS     string          `json:"ts"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
}

// Export reads every table in insertion order.
func (s *Store) Export() (*Session, error) {
	conn, err := s.take()
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	out := &Session{
		Probes:   []ProbeRow{},
		Logs:     []LogRow{},
		Chips:    []ChipRow{},
		Dumps:    []DumpRow{},
		Glitches: []GlitchRow{},
	}

	queries := []struct {
		table string
		sql   string
		row   func(stmt *sqlite.Stmt)
	}{
		{"probes", `SELECT id, ts, target, interface, confidence, data FROM probes ORDER BY id`, func(stmt *sqlite.Stmt) {
			out.Probes = append(out.Probes, ProbeRow{
				ID:         stmt.ColumnInt64(0),
				TS:         stmt.ColumnText(1),
				Target:     stmt.ColumnText(2),
				Interface:  stmt.ColumnText(3),
				Confidence: stmt.ColumnFloat(4),
				Data:       json.RawMessage(stmt.ColumnText(5)),
			})
		}},
		{"logs", `SELECT id, ts, target, line FROM logs ORDER BY id`, func(stmt *sqlite.Stmt) {
			out.Logs = append(out.Logs, LogRow{
				ID:     stmt.ColumnInt64(0),
				TS:     stmt.ColumnText(1),
				Target: stmt.ColumnText(2),
				Line:   stmt.ColumnText(3),
			})
		}},
		{"chips", `SELECT id, ts, type, vendor, name, details FROM chips ORDER BY id`, func(stmt *sqlite.Stmt) {
			out.Chips = append(out.Chips, ChipRow{
				ID:      stmt.ColumnInt64(0),
				TS:      stmt.ColumnText(1),
				Type:    stmt.ColumnText(2),
				Vendor:  stmt.ColumnText(3),
				Name:    stmt.ColumnText(4),
				Details: json.RawMessage(stmt.ColumnText(5)),
			})
		}},
		{"dumps", `SELECT id, ts, source, path, size, declared, digest, truncated, codec FROM dumps ORDER BY id`, func(stmt *sqlite.Stmt) {
			out.Dumps = append(out.Dumps, DumpRow{
				ID:        stmt.ColumnInt64(0),
				TS:        stmt.ColumnText(1),
				Source:    stmt.ColumnText(2),
				Path:      stmt.ColumnText(3),
				Size:      stmt.ColumnInt64(4),
				Declared:  stmt.ColumnInt64(5),
				Digest:    stmt.ColumnText(6),
				Truncated: stmt.ColumnInt(7) != 0,
				Codec:     stmt.ColumnText(8),
			})
		}},
		{"glitches", `SELECT id, ts, params, result FROM glitches ORDER BY id`, func(stmt *sqlite.Stmt) {
			out.Glitches = append(out.Glitches, GlitchRow{
				ID:     stmt.ColumnInt64(0),
				TS:     stmt.ColumnText(1),
				Params: json.RawMessage(stmt.ColumnText(2)),
				Result: json.RawMessage(stmt.ColumnText(3)),
			})
		}},
	}

	for _, q := range queries {
		err := sqlitex.Execute(conn, q.sql, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				q.row(stmt)
				return nil
			},
		})
		if err != nil {
			return nil, fmt.Errorf("store: read %s: %w", q.table, err)
		}
	}
	return out, nil
}

// ExportJSON writes the session to path as indented JSON.
func (s *Store) ExportJSON(path string) error {
	session, err := s.Export()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode session: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	s.logger.Info("session exported", "path", path,
		"probes", len(session.Probes), "dumps", len(session.Dumps), "glitches", len(session.Glitches))
	return nil
}
