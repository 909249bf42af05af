package logic

import "time"

// TouchResult is the outcome of a single touch poll.
type TouchResult struct {
	// Active is the edge-tracked logical touch state.
	Active bool
	// Toggle is set when a rising edge should flip the operating mode.
	Toggle bool
}

// TouchDebouncer edge-detects the capacitive touch input.
//
// A rising edge sets the logical state, a falling edge clears it, and an
// unchanged level leaves it alone. Rising edges also produce a mode toggle,
// unless the previous toggle happened less than the debounce delay ago.
// The first poll only records the level; it never toggles.
type TouchDebouncer struct {
	debounce   time.Duration
	prev       int
	active     bool
	baselined  bool
	lastToggle time.Time
	toggled    bool
}

// NewTouchDebouncer creates a debouncer with the given retrigger delay.
func NewTouchDebouncer(debounce time.Duration) *TouchDebouncer {
	return &TouchDebouncer{debounce: debounce}
}

// Process takes the current level (0 or 1) observed at now.
func (d *TouchDebouncer) Process(level int, now time.Time) TouchResult {
	if level != 0 {
		level = 1
	}

	if !d.baselined {
		d.prev = level
		d.active = level == 1
		d.baselined = true
		return TouchResult{Active: d.active}
	}

	var toggle bool
	switch {
	case d.prev == 0 && level == 1:
		d.active = true
		if !d.toggled || now.Sub(d.lastToggle) >= d.debounce {
			toggle = true
			d.toggled = true
			d.lastToggle = now
		}
	case d.prev == 1 && level == 0:
		d.active = false
	}
	d.prev = level

	return TouchResult{Active: d.active, Toggle: toggle}
}

// Active returns the current logical touch state.
func (d *TouchDebouncer) Active() bool {
	return d.active
}

// IsBaselined returns whether the first level has been observed.
func (d *TouchDebouncer) IsBaselined() bool {
	return d.baselined
}
