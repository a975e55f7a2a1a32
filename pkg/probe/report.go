package probe

import "fmt"

// Outcome classifies how a strategy ended.
type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeNoSignal  Outcome = "no-signal"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFailed    Outcome = "failed"
)

// StrategyResult summarizes one strategy run. Failures counts attempts that
// ended in an error (transport or otherwise); they are expected against
// unknown hardware and only make the outcome OutcomeFailed when the
// strategy could not do its job at all.
type StrategyResult struct {
	Strategy string
	Outcome  Outcome
	Attempts int
	Failures int
	Finding  *Finding
	Err      error
}

func (r StrategyResult) String() string {
	s := fmt.Sprintf("%s: %s after %d attempt(s)", r.Strategy, r.Outcome, r.Attempts)
	if r.Failures > 0 {
		s += fmt.Sprintf(", %d failed", r.Failures)
	}
	if r.Err != nil {
		s += fmt.Sprintf(" (last error: %v)", r.Err)
	}
	return s
}

// Report is the result of one probe run. Only the prober appends to it; once
// Run returns it is never modified again, and accessors hand out copies.
type Report struct {
	targetID string
	findings []Finding
	logs     []string
	results  []StrategyResult
}

func newReport(targetID string) *Report {
	return &Report{targetID: targetID}
}

// TargetID returns the identifier the run was started with.
func (r *Report) TargetID() string { return r.targetID }

// Findings returns the findings in discovery order.
func (r *Report) Findings() []Finding {
	return append([]Finding(nil), r.findings...)
}

// Logs returns the log trail in order.
func (r *Report) Logs() []string {
	return append([]string(nil), r.logs...)
}

// Results returns one entry per strategy, in execution order.
func (r *Report) Results() []StrategyResult {
	return append([]StrategyResult(nil), r.results...)
}

// FindingsOf returns the findings of one kind, in discovery order.
func (r *Report) FindingsOf(kind Kind) []Finding {
	var out []Finding
	for _, f := range r.findings {
		if f.kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func (r *Report) addFinding(f Finding) {
	r.findings = append(r.findings, f)
}

func (r *Report) logf(format string, args ...any) string {
	line := fmt.Sprintf(format, args...)
	r.logs = append(r.logs, line)
	return line
}

func (r *Report) addResult(res StrategyResult) {
	r.results = append(r.results, res)
}
