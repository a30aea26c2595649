package service

// Timer policy: remaining time is a stored per-part budget, evaluated lazily
// whenever the session is touched. No background timer exists; a session may
// sit expired until the next client interaction, which is acceptable because
// grading always uses committed answers, not wall-clock state.

// PartExpired reports whether an initialized part budget has run out. A nil
// budget means the part was never entered and must be initialized first.
func PartExpired(remaining *int) bool {
	return remaining != nil && *remaining <= 0
}

// ClampReported folds a client-reported remaining time into the stored budget.
// The stored value never increases and never goes below zero; an uninitialized
// budget ignores the report.
func ClampReported(stored *int, reported int) *int {
	if stored == nil {
		return nil
	}
	r := reported
	if r < 0 {
		r = 0
	}
	if r < *stored {
		return &r
	}
	return stored
}

// DeductSpent subtracts time spent on a part from the stored budget, flooring
// at zero.
func DeductSpent(stored *int, spent int) int {
	if stored == nil {
		return 0
	}
	r := *stored - spent
	if r < 0 {
		r = 0
	}
	return r
}
