package eta

// Alert debounces the near-arrival signal so it fires once per approach.
// The zero value is disarmed and ready.
//
// Alert is not safe for concurrent use; it is owned by a single session loop.
type Alert struct {
	armed bool
}

// Observe feeds the latest estimate of the nearest vehicle and reports whether
// the alert should fire now. Pass Indeterminate when no vehicle is in range.
func (a *Alert) Observe(e Estimate) bool {
	if e.Near() {
		if a.armed {
			return false
		}
		a.armed = true
		return true
	}
	a.armed = false
	return false
}

// Armed reports whether the alert already fired for the current approach.
func (a *Alert) Armed() bool { return a.armed }

// Reset disarms the alert.
func (a *Alert) Reset() { a.armed = false }
