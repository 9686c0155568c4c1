package core

import "time"

// SetRunnerClock replaces the runner clock in tests.
func SetRunnerClock(r *Runner, now func() time.Time) {
	r.now = now
}

// SetReconcilerClock replaces the reconciler clock in tests.
func SetReconcilerClock(r *Reconciler, now func() time.Time) {
	r.now = now
}
