// Package store keeps a session's findings, logs, chip hints, dumps and
// glitch attempts in a SQLite database and exports them as JSON.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/dump"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/glitch"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

const schema = `
CREATE TABLE IF NOT EXISTS probes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         TEXT NOT NULL,
	target     TEXT NOT NULL,
	interface  TEXT NOT NULL,
	confidence REAL NOT NULL,
	data       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS logs (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	ts     TEXT NOT NULL,
	target TEXT NOT NULL,
	line   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chips (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	ts      TEXT NOT NULL,
	type    TEXT NOT NULL,
	vendor  TEXT NOT NULL,
	name    TEXT NOT NULL,
	details TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS dumps (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         TEXT NOT NULL,
	source     TEXT NOT NULL,
	path       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	declared   INTEGER NOT NULL,
	digest     TEXT NOT NULL,
	truncated  INTEGER NOT NULL,
	codec      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS glitches (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	ts     TEXT NOT NULL,
	params TEXT NOT NULL,
	result TEXT NOT NULL
);
`

// Options configures Open.
type Options struct {
	// Path is the database file. Its directory is created if missing.
	Path string

	Logger *slog.Logger

	// Now stamps rows; time.Now when nil.
	Now func() time.Time
}

// Store is a session database. It satisfies probe.Recorder,
// dump.ArtifactRecorder and glitch.Recorder. Safe for concurrent use.
type Store struct {
	pool   *sqlitex.Pool
	path   string
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ probe.Recorder        = (*Store)(nil)
	_ dump.ArtifactRecorder = (*Store)(nil)
	_ glitch.Recorder       = (*Store)(nil)
)

// Open opens or creates the database at opts.Path.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, &probe.ConfigError{Field: "db", Reason: "a database path is required"}
	}
	if dir := filepath.Dir(opts.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", dir, err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	pool, err := sqlitex.NewPool(opts.Path, sqlitex.PoolOptions{
		PoolSize:    2,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", opts.Path, err)
	}

	s := &Store{pool: pool, path: opts.Path, logger: logger, now: now}

	// Surface schema errors at open rather than on first write.
	conn, err := s.take()
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.pool.Put(conn)

	logger.Debug("session store opened", "path", opts.Path)
	return s, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("store: schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", s.path, err)
	}
	return nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) take() (*sqlite.Conn, error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, fmt.Errorf("store: take connection: %w", err)
	}
	return conn, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Store) exec(query string, args ...any) error {
	conn, err := s.take()
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RecordFinding stores one detected interface.
func (s *Store) RecordFinding(target string, f probe.Finding) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("store: encode finding: %w", err)
	}
	err = s.exec(`INSERT INTO probes (ts, target, interface, confidence, data) VALUES (?, ?, ?, ?, ?)`,
		s.timestamp(), target, string(f.Kind()), f.Confidence(), string(data))
	if err != nil {
		return fmt.Errorf("store: insert finding: %w", err)
	}
	return nil
}

// RecordLog stores one report log line.
func (s *Store) RecordLog(target, line string) error {
	if err := s.exec(`INSERT INTO logs (ts, target, line) VALUES (?, ?, ?)`, s.timestamp(), target, line); err != nil {
		return fmt.Errorf("store: insert log: %w", err)
	}
	return nil
}

// RecordChips stores chip-identification hints in one transaction.
func (s *Store) RecordChips(chips []probe.ChipDescriptor) (err error) {
	if len(chips) == 0 {
		return nil
	}
	conn, err := s.take()
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	ts := s.timestamp()
	for _, c := range chips {
		details := c.Details
		if details == nil {
			details = map[string]any{}
		}
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("store: encode chip details: %w", err)
		}
		err = sqlitex.Execute(conn, `INSERT INTO chips (ts, type, vendor, name, details) VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{ts, c.Type, c.Vendor, c.Name, string(data)}})
		if err != nil {
			return fmt.Errorf("store: insert chip: %w", err)
		}
	}
	return nil
}

// RecordDump stores one dump artifact.
func (s *Store) RecordDump(a dump.Artifact) error {
	codec := a.Codec
	if codec == "" {
		codec = dump.CodecNone
	}
	err := s.exec(`INSERT INTO dumps (ts, source, path, size, declared, digest, truncated, codec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.timestamp(), a.Source, a.Path, a.Size, a.Declared, a.Digest, boolInt(a.Truncated), string(codec))
	if err != nil {
		return fmt.Errorf("store: insert dump: %w", err)
	}
	return nil
}

type glitchParams struct {
	Kind    glitch.Kind `json:"kind"`
	PulseNS int         `json:"pw_ns"`
	DelayNS int         `json:"delay_ns"`
	Iter    int         `json:"iter"`
}

// RecordGlitch stores one glitch attempt.
func (s *Store) RecordGlitch(a glitch.Attempt) error {
	params, err := json.Marshal(glitchParams{Kind: a.Kind, PulseNS: a.PulseNS, DelayNS: a.DelayNS, Iter: a.Iter})
	if err != nil {
		return fmt.Errorf("store: encode glitch params: %w", err)
	}
	result := a.Result
	if result == nil {
		result = map[string]any{}
	}
	res, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: encode glitch result: %w", err)
	}
	ts := s.timestamp()
	if !a.When.IsZero() {
		ts = a.When.UTC().Format(time.RFC3339Nano)
	}
	if err := s.exec(`INSERT INTO glitches (ts, params, result) VALUES (?, ?, ?)`, ts, string(params), string(res)); err != nil {
		return fmt.Errorf("store: insert glitch: %w", err)
	}
	return nil
}
