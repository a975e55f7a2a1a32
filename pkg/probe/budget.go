package probe

// Budget bounds the number of attempts a strategy may make. A zero max means
// unbounded. Budgets are owned by a single strategy run and are not safe for
// concurrent use.
type Budget struct {
	max  int
	used int
}

// NewBudget returns a budget allowing max attempts (0 = unbounded).
func NewBudget(max int) *Budget {
	if max < 0 {
		max = 0
	}
	return &Budget{max: max}
}

// Take consumes one attempt. It returns false, without consuming, once the
// budget is exhausted.
func (b *Budget) Take() bool {
	if b.Exhausted() {
		return false
	}
	b.used++
	return true
}

// Exhausted reports whether no attempts remain.
func (b *Budget) Exhausted() bool {
	return b.max > 0 && b.used >= b.max
}

// Used returns the number of attempts taken.
func (b *Budget) Used() int { return b.used }

// Max returns the configured bound (0 = unbounded).
func (b *Budget) Max() int { return b.max }
