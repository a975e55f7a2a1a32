package dump

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/link"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

// Backends implement whichever of these their hardware supports. Remote
// probe heads stream SPI, I2C and JTAG; UARTDumper is for backends wired
// to the target's console directly, such as a local serial capture.
type (
	SPIDumper interface {
		DumpSPI(w io.Writer) (link.StreamResult, error)
	}
	I2CDumper interface {
		DumpI2C(w io.Writer) (link.StreamResult, error)
	}
	UARTDumper interface {
		DumpUART(w io.Writer) (link.StreamResult, error)
	}
	JTAGDumper interface {
		DumpJTAG(w io.Writer) (link.StreamResult, error)
	}
)

type streamFunc func(w io.Writer) (link.StreamResult, error)

type source struct {
	tag string
	fn  streamFunc
}

// Options configures a Runner.
type Options struct {
	Dir      string
	Codec    Codec // CodecNone when empty
	Recorder ArtifactRecorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Runner dumps every source a backend offers, in the order SPI, I2C, UART,
// JTAG.
type Runner struct {
	sources []source
	opts    Options
	logger  *slog.Logger
	logs    []string
}

// NewRunner inspects backend for dump capabilities and prepares the output
// directory.
func NewRunner(backend any, opts Options) (*Runner, error) {
	if opts.Dir == "" {
		return nil, &probe.ConfigError{Field: "dump_dir", Reason: "an output directory is required"}
	}
	codec, err := ParseCodec(string(opts.Codec))
	if err != nil {
		return nil, &probe.ConfigError{Field: "compression", Reason: err.Error()}
	}
	opts.Codec = codec
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("dump: create %s: %w", opts.Dir, err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var sources []source
	if d, ok := backend.(SPIDumper); ok {
		sources = append(sources, source{"spi", d.DumpSPI})
	}
	if d, ok := backend.(I2CDumper); ok {
		sources = append(sources, source{"i2c", d.DumpI2C})
	}
	if d, ok := backend.(UARTDumper); ok {
		sources = append(sources, source{"uart", d.DumpUART})
	}
	if d, ok := backend.(JTAGDumper); ok {
		sources = append(sources, source{"jtag", d.DumpJTAG})
	}

	return &Runner{sources: sources, opts: opts, logger: logger}, nil
}

// Sources lists the source tags the backend offers.
func (r *Runner) Sources() []string {
	tags := make([]string, len(r.sources))
	for i, s := range r.sources {
		tags[i] = s.tag
	}
	return tags
}

// Run dumps every source. It never fails: a source that cannot be read is
// noted in Logs and skipped.
func (r *Runner) Run() []Artifact {
	artifacts := []Artifact{}
	for _, src := range r.sources {
		a, err := r.dumpOne(src)
		if err != nil {
			r.logf("%s dump failed: %v", strings.ToUpper(src.tag), err)
			continue
		}
		if a.Truncated {
			r.logf("%s dump truncated: received %d of %d bytes", strings.ToUpper(src.tag), a.Size, a.Declared)
		}
		artifacts = append(artifacts, a)
		r.logger.Info("dump written", "source", a.Source, "path", a.Path, "bytes", a.Size, "truncated", a.Truncated)

		if r.opts.Recorder != nil {
			if err := r.opts.Recorder.RecordDump(a); err != nil {
				r.logger.Warn("recorder rejected dump", "path", a.Path, "error", err)
			}
		}
	}
	return artifacts
}

// Logs returns the failure trail of the runs so far.
func (r *Runner) Logs() []string { return append([]string(nil), r.logs...) }

func (r *Runner) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	r.logs = append(r.logs, line)
	r.logger.Warn("dump problem", "detail", line)
}

func (r *Runner) outPath(tag string) string {
	name := fmt.Sprintf("%s_%s.bin%s", tag, r.opts.Now().Format("20060102_150405"), r.opts.Codec.Ext())
	return filepath.Join(r.opts.Dir, name)
}

func (r *Runner) dumpOne(src source) (a Artifact, err error) {
	sink := newLazySink(r.outPath(src.tag), r.opts.Codec)
	defer func() {
		if rec := recover(); rec != nil {
			sink.discard()
			err = fmt.Errorf("backend panic: %v", rec)
		}
	}()

	res, streamErr := src.fn(sink)

	truncated := errors.Is(streamErr, probe.ErrShortStream)
	if streamErr != nil && !truncated {
		sink.discard()
		return Artifact{}, streamErr
	}
	// A declared-empty dump still produces its (empty) file.
	if err := sink.open(); err != nil {
		return Artifact{}, err
	}
	if err := sink.Close(); err != nil {
		os.Remove(sink.path)
		return Artifact{}, err
	}

	return Artifact{
		Source:    src.tag,
		Path:      sink.path,
		Declared:  res.Declared,
		Size:      sink.n,
		Digest:    sink.digest(),
		Truncated: truncated || res.Truncated(),
		Codec:     r.opts.Codec,
	}, nil
}
