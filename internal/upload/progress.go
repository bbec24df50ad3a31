package upload

// Percent converts transfer byte counters to a whole percentage, floored
// and clamped to [0,100]. An unknown total reports 0.
func Percent(sent, total int64) int {
	if total <= 0 || sent <= 0 {
		return 0
	}
	if sent >= total {
		return 100
	}
	return int(sent * 100 / total)
}

// progressTracker turns raw counters into a non-decreasing percentage
// stream, reporting each new value once.
type progressTracker struct {
	last    int
	started bool
}

// observe returns the percentage to report and whether it should be
// reported at all.
func (p *progressTracker) observe(sent, total int64) (int, bool) {
	pct := Percent(sent, total)
	if p.started && pct <= p.last {
		return p.last, false
	}
	p.started = true
	p.last = pct
	return pct, true
}
