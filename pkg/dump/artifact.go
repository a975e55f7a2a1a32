package dump

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Artifact describes one dump written to disk. Size counts the raw bytes
// received, before compression; Digest is their BLAKE3 hash.
type Artifact struct {
	Source    string `json:"source"`
	Path      string `json:"path"`
	Declared  int64  `json:"declared"`
	Size      int64  `json:"size"`
	Digest    string `json:"blake3"`
	Truncated bool   `json:"truncated"`
	Codec     Codec  `json:"codec"`
}

func (a Artifact) String() string {
	s := fmt.Sprintf("%s: %s (%d bytes, blake3 %s)", a.Source, a.Path, a.Size, a.Digest)
	if a.Codec.Compressed() {
		s += ", " + string(a.Codec)
	}
	if a.Truncated {
		s += fmt.Sprintf(" truncated, %d declared", a.Declared)
	}
	return s
}

// ArtifactRecorder receives each artifact as it is completed.
type ArtifactRecorder interface {
	RecordDump(a Artifact) error
}

// lazySink creates its file on first use so that a dump which never
// starts leaves nothing behind. Raw bytes are hashed before compression.
type lazySink struct {
	path  string
	codec Codec

	hash *blake3.Hasher
	file *os.File
	enc  io.WriteCloser
	w    io.Writer
	n    int64
}

func newLazySink(path string, codec Codec) *lazySink {
	return &lazySink{path: path, codec: codec, hash: blake3.New()}
}

func (s *lazySink) open() error {
	if s.w != nil {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("dump: create %s: %w", s.path, err)
	}
	s.file = f
	s.w = f
	enc, err := s.codec.newEncoder(f)
	if err != nil {
		f.Close()
		os.Remove(s.path)
		return fmt.Errorf("dump: %s encoder: %w", s.codec, err)
	}
	if enc != nil {
		s.enc = enc
		s.w = enc
	}
	return nil
}

func (s *lazySink) Write(p []byte) (int, error) {
	if err := s.open(); err != nil {
		return 0, err
	}
	n, err := s.w.Write(p)
	s.hash.Write(p[:n])
	s.n += int64(n)
	return n, err
}

func (s *lazySink) digest() string { return hex.EncodeToString(s.hash.Sum(nil)) }

// Close flushes and closes the file if one was created.
func (s *lazySink) Close() error {
	if s.file == nil {
		return nil
	}
	var encErr error
	if s.enc != nil {
		encErr = s.enc.Close()
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("dump: close %s: %w", s.path, err)
	}
	if encErr != nil {
		return fmt.Errorf("dump: finish %s: %w", s.path, encErr)
	}
	return nil
}

// discard closes and removes the file.
func (s *lazySink) discard() {
	if s.file == nil {
		return
	}
	s.Close()
	os.Remove(s.path)
}
