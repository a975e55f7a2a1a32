package heuristics

// Confidence ceilings and the fixed per-strategy confidences.
const (
	MaxConfidence = 0.95

	HostUARTConfidence = 0.95 // a host endpoint answered directly
	SPIConfidence      = 0.9
	JTAGConfidence     = 0.85
	EdgeUARTConfidence = 0.7 // inferred from timing only

	baseConfidence     = 0.4
	perItemConfidence  = 0.15
	defaultEvidenceMax = 4
)

// ConfidenceFromCount scores a detection backed by n corroborating items
// (for example, I2C addresses that acknowledged). It saturates after four
// items and never exceeds MaxConfidence.
func ConfidenceFromCount(n int) float64 {
	return ConfidenceFromCountMax(n, defaultEvidenceMax)
}

// ConfidenceFromCountMax is ConfidenceFromCount with an explicit saturation
// bound.
func ConfidenceFromCountMax(n, max int) float64 {
	if n < 0 {
		n = 0
	}
	if n > max {
		n = max
	}
	c := baseConfidence + perItemConfidence*float64(n)
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}
