package daemon

import "time"

// Clock abstracts time.Now/time.NewTimer so Stopper/Runner/Supervisor
// timing can be driven deterministically in tests, without real sleeps.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer abstracts a single-shot timer, mirroring the subset of
// *time.Timer this package needs.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// realClock is the production Clock, backed by the standard library.
type realClock struct{}

// RealClock returns the production time source.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

type realTimer struct{ t *time.Timer }

func (r *realTimer) C() <-chan time.Time { return r.t.C }
func (r *realTimer) Stop() bool          { return r.t.Stop() }
