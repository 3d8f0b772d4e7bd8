package insert

import "time"

// Timer measures one insertion pass. time.Now carries a monotonic reading,
// so Elapsed is unaffected by wall-clock adjustments.
type Timer struct {
	start time.Time
}

// StartTimer starts a new timer.
func StartTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started.
func (t Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
