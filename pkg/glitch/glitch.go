// Package glitch runs fault-injection campaigns against a probe head.
package glitch

import (
	"fmt"
	"log/slog"
	"time"
)

// Kind selects what the head disturbs.
type Kind string

const (
	Voltage Kind = "voltage"
	Clock   Kind = "clock"
	Reset   Kind = "reset"
)

// Campaign sweeps pulse width × delay, repeating each point.
type Campaign struct {
	Kind        Kind  `yaml:"kind" json:"kind"`
	PulseWidths []int `yaml:"pulse_widths" json:"pulse_widths"`
	Delays      []int `yaml:"delays" json:"delays"`
	Repeats     int   `yaml:"repeats" json:"repeats"`
}

// DefaultCampaigns is a short voltage sweep.
func DefaultCampaigns() []Campaign {
	return []Campaign{{
		Kind:        Voltage,
		PulseWidths: []int{50, 100, 200},
		Delays:      []int{0, 50, 100},
		Repeats:     3,
	}}
}

// withDefaults fills unset fields: voltage, a single 50 ns pulse at no
// delay, one repeat.
func (c Campaign) withDefaults() Campaign {
	if c.Kind == "" {
		c.Kind = Voltage
	}
	if len(c.PulseWidths) == 0 {
		c.PulseWidths = []int{50}
	}
	if len(c.Delays) == 0 {
		c.Delays = []int{0}
	}
	if c.Repeats <= 0 {
		c.Repeats = 1
	}
	return c
}

// Size returns the number of attempts the campaign makes.
func (c Campaign) Size() int {
	c = c.withDefaults()
	return len(c.PulseWidths) * len(c.Delays) * c.Repeats
}

// Glitcher fires single glitches. Results are the head's reply object.
type Glitcher interface {
	GlitchVoltage(pulseNS, delayNS int) (map[string]any, error)
	GlitchClock(pulseNS, delayNS int) (map[string]any, error)
	GlitchReset(pulseNS, delayNS int) (map[string]any, error)
}

// Attempt records one glitch and what the head reported.
type Attempt struct {
	When    time.Time      `json:"when"`
	Kind    Kind           `json:"kind"`
	PulseNS int            `json:"pw_ns"`
	DelayNS int            `json:"delay_ns"`
	Iter    int            `json:"iter"`
	Result  map[string]any `json:"result"`
}

// Failed reports whether the attempt could not be carried out.
func (a Attempt) Failed() bool {
	s, _ := a.Result["status"].(string)
	return s == "error" || s == "unknown_kind"
}

// Recorder receives each attempt as it completes.
type Recorder interface {
	RecordGlitch(a Attempt) error
}

// Runner drives campaigns through a Glitcher.
type Runner struct {
	g      Glitcher
	rec    Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner binds a runner to g. rec and logger may be nil.
func NewRunner(g Glitcher, rec Recorder, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{g: g, rec: rec, logger: logger, now: time.Now}
}

// Run executes every campaign, DefaultCampaigns when campaigns is nil. It
// never fails: errors from the head become attempts with status "error".
func (r *Runner) Run(campaigns []Campaign) []Attempt {
	if campaigns == nil {
		campaigns = DefaultCampaigns()
	}

	attempts := []Attempt{}
	for _, c := range campaigns {
		c = c.withDefaults()
		r.logger.Info("glitch campaign", "kind", c.Kind, "attempts", c.Size())
		for _, pw := range c.PulseWidths {
			for _, d := range c.Delays {
				for i := 0; i < c.Repeats; i++ {
					a := Attempt{
						When:    r.now(),
						Kind:    c.Kind,
						PulseNS: pw,
						DelayNS: d,
						Iter:    i,
						Result:  r.single(c.Kind, pw, d),
					}
					attempts = append(attempts, a)
					r.record(a)
				}
			}
		}
	}
	return attempts
}

func (r *Runner) record(a Attempt) {
	if a.Failed() {
		r.logger.Debug("glitch attempt failed", "kind", a.Kind, "pw_ns", a.PulseNS, "delay_ns", a.DelayNS, "result", a.Result)
	}
	if r.rec == nil {
		return
	}
	if err := r.rec.RecordGlitch(a); err != nil {
		r.logger.Warn("recorder rejected glitch attempt", "error", err)
	}
}

func (r *Runner) single(kind Kind, pw, delay int) (result map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			result = errorResult(fmt.Errorf("glitcher panic: %v", rec))
		}
	}()

	var fire func(int, int) (map[string]any, error)
	switch kind {
	case Voltage:
		fire = r.g.GlitchVoltage
	case Clock:
		fire = r.g.GlitchClock
	case Reset:
		fire = r.g.GlitchReset
	default:
		return map[string]any{"status": "unknown_kind"}
	}

	res, err := fire(pw, delay)
	if err != nil {
		return errorResult(err)
	}
	if res == nil {
		res = map[string]any{}
	}
	return res
}

func errorResult(err error) map[string]any {
	return map[string]any{"status": "error", "error": err.Error()}
}
