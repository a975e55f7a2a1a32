package probe

import (
	"fmt"
	"log/slog"
)

// Prober runs the detection strategies against one backend. A Prober issues
// one capability call at a time; running two Probers against the same
// physical transport concurrently is not supported.
type Prober struct {
	cap    Capability
	cfg    *Config
	logger *slog.Logger
}

// NewProber validates cfg (DefaultConfig when nil) and binds it to a backend.
// A nil logger discards process logs; the report keeps its own trail either
// way.
func NewProber(c Capability, cfg *Config, logger *slog.Logger) (*Prober, error) {
	if c == nil {
		return nil, &ConfigError{Field: "capability", Reason: "a backend is required"}
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Prober{cap: c, cfg: cfg, logger: logger}, nil
}

// Config returns the configuration in use.
func (p *Prober) Config() *Config { return p.cfg }

// Run executes every enabled strategy in fixed order and returns the report.
// It never fails: backend errors become report log lines or skipped
// candidates. rec may be nil.
func (p *Prober) Run(targetID string, rec Recorder) *Report {
	r := &run{
		cap:    p.cap,
		cfg:    p.cfg,
		logger: p.logger.With("target", targetID),
		rec:    rec,
		report: newReport(targetID),
	}

	pins, err := call("list_pins", r.cap.ListPins)
	if err != nil {
		r.logf("Failed to list pins: %v", err)
		pins = nil
	}
	r.logf("Scanning %d pins", len(pins))

	strategies := []struct {
		name string
		fn   func([]PinID) StrategyResult
	}{
		{StrategyHostUART, r.hostUART},
		{StrategyEdgeUART, r.edgeUART},
		{StrategyI2C, r.i2c},
		{StrategySPI, r.spi},
		{StrategyJTAG, r.jtag},
	}

	for _, s := range strategies {
		if !r.cfg.ShouldRun(s.name) {
			r.logf("%s: skipped", s.name)
			continue
		}
		r.logger.Debug("strategy started", "strategy", s.name, "pins", len(pins))
		res := s.fn(pins)
		r.report.addResult(res)
		r.logf("%s", res)
		r.logger.Info("strategy finished",
			"strategy", res.Strategy,
			"outcome", res.Outcome,
			"attempts", res.Attempts,
			"failures", res.Failures,
		)
	}

	return r.report
}

// RunRecon asks the backend for chip-identification hints. It returns an
// empty slice when the backend cannot identify chips or the call fails.
func (p *Prober) RunRecon() []ChipDescriptor {
	id, ok := p.cap.(ChipIdentifier)
	if !ok {
		p.logger.Debug("backend does not identify chips")
		return []ChipDescriptor{}
	}
	chips, err := call("identify_chips", id.IdentifyChips)
	if err != nil {
		p.logger.Warn("chip identification failed", "error", err)
		return []ChipDescriptor{}
	}
	if chips == nil {
		return []ChipDescriptor{}
	}
	return chips
}

// run holds the state of one Run invocation.
type run struct {
	cap    Capability
	cfg    *Config
	logger *slog.Logger
	rec    Recorder
	report *Report
}

func (r *run) logf(format string, args ...any) {
	line := r.report.logf(format, args...)
	if r.rec != nil {
		if err := r.rec.RecordLog(r.report.targetID, line); err != nil {
			r.logger.Warn("recorder rejected log line", "error", err)
		}
	}
}

// failure accounts for one failed attempt. Transport errors are the normal
// "no signal" case against unknown wiring; anything else is worth a line in
// the report.
func (r *run) failure(res *StrategyResult, candidate string, err error) {
	res.Failures++
	res.Err = err
	if IsTransport(err) {
		r.logger.Debug("attempt failed", "strategy", res.Strategy, "candidate", candidate, "error", err)
		return
	}
	r.logger.Warn("attempt failed", "strategy", res.Strategy, "candidate", candidate, "error", err)
	r.logf("%s: %s: %v", res.Strategy, candidate, err)
}

// found validates and appends a finding, then marks res as found.
func (r *run) found(res StrategyResult, kind Kind, pins map[Role]PinID, confidence float64, meta map[string]any, format string, args ...any) StrategyResult {
	f, err := NewFinding(kind, pins, confidence, meta)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		r.logf("%s: discarding invalid finding: %v", res.Strategy, err)
		return res
	}

	r.report.addFinding(f)
	if r.rec != nil {
		if err := r.rec.RecordFinding(r.report.targetID, f); err != nil {
			r.logger.Warn("recorder rejected finding", "error", err)
		}
	}
	r.logf(format, args...)
	r.logger.Info("interface detected", "finding", f.String())

	res.Outcome = OutcomeFound
	res.Finding = &f
	res.Err = nil
	return res
}

// call invokes a backend operation, converting a panic into a TransportError
// so a misbehaving backend cannot take the run down.
func call[T any](op string, fn func() (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			v = zero
			err = &TransportError{Op: op, Err: fmt.Errorf("backend panic: %v", rec)}
		}
	}()
	return fn()
}
