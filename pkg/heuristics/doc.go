// Package heuristics holds the small numeric models the prober uses to turn
// raw observations into decisions: a baud-rate estimator that works on
// pre-digitized edge timings, and a saturating confidence model driven by
// evidence counts.
//
// Both models are deliberately conservative. The baud estimator prefers a
// false negative over a false positive, and no confidence value ever claims
// certainty (the ceiling is MaxConfidence).
package heuristics
