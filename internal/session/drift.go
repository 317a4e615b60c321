package session

import "time"

// DriftTolerance is how far a local player may diverge from the
// broadcast position before snapping. Below it, local playback runs
// uninterrupted so clock skew and network latency don't cause constant
// re-seeking.
const DriftTolerance = 3 * time.Second

// ProjectPosition estimates where the broadcast transport is "now" by
// rolling the stamped position forward while playing.
func ProjectPosition(t Transport, now time.Time) float64 {
	if !t.IsPlaying {
		return t.PositionSeconds
	}
	elapsed := now.Sub(t.LastUpdatedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return t.PositionSeconds + elapsed
}

// Reconcile compares a locally tracked position against a broadcast
// transport. It returns the position the local player should be at and
// whether it has to snap there.
func Reconcile(localPosition float64, remote Transport, now time.Time) (float64, bool) {
	expected := ProjectPosition(remote, now)
	diff := localPosition - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > DriftTolerance.Seconds() {
		return expected, true
	}
	return localPosition, false
}
