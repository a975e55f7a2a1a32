package dump

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects how dump files are compressed on disk.
type Codec string

const (
	CodecNone Codec = "none"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

// ParseCodec accepts a codec name; an empty name means CodecNone.
func ParseCodec(name string) (Codec, error) {
	switch c := Codec(strings.ToLower(strings.TrimSpace(name))); c {
	case "", CodecNone:
		return CodecNone, nil
	case CodecZstd, CodecLZ4:
		return c, nil
	}
	return "", fmt.Errorf("dump: unknown codec %q (want none, zstd or lz4)", name)
}

// Ext returns the suffix appended after ".bin".
func (c Codec) Ext() string {
	switch c {
	case CodecZstd:
		return ".zst"
	case CodecLZ4:
		return ".lz4"
	}
	return ""
}

// Compressed reports whether files written with c are compressed.
func (c Codec) Compressed() bool { return c.Ext() != "" }

// newEncoder wraps w. Closing the encoder flushes it but leaves w open.
func (c Codec) newEncoder(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CodecZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	}
	return nil, nil
}

// NewReader returns a reader that undoes c over r.
func (c Codec) NewReader(r io.Reader) (io.Reader, error) {
	switch c {
	case CodecZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CodecLZ4:
		return lz4.NewReader(r), nil
	}
	return r, nil
}
