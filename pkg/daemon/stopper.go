package daemon

import (
	"context"
	"sync"
	"time"
)

// Reason is one of the fixed, named causes a Stopper can be set for.
// The reason set only ever grows; it is never cleared.
type Reason int

const (
	// ResourceDeleted is set when the owning resource is marked for
	// deletion.
	ResourceDeleted Reason = iota
	// OperatorExiting is set when the operator process is shutting
	// down.
	OperatorExiting
	// DaemonSignalled is set when the supervisor enters the graceful
	// termination window for this daemon.
	DaemonSignalled
	// DaemonCancelled is set when the supervisor force-cancels this
	// daemon's runner task.
	DaemonCancelled
	// DaemonAbandoned is set when the daemon outlived its termination
	// deadline and is left orphaned.
	DaemonAbandoned
	// Done is set by the runner's common-exit contract on every exit
	// path: normal return, error, or cancellation.
	Done
)

// Stopper is a shared, multi-reason cooperative cancellation signal. It
// is safe for concurrent use: the runner and the supervisor's stop
// goroutines may Set it concurrently, and reads (including Wait) may
// happen from worker goroutines running synchronous handlers.
type Stopper struct {
	clock Clock

	mu      sync.Mutex
	reasons map[Reason]struct{}
	when    time.Time
	set     chan struct{} // closed exactly once, the instant any reason is first set
}

// NewStopper returns an unset Stopper.
func NewStopper(clock Clock) *Stopper {
	return &Stopper{
		clock:   clock,
		reasons: make(map[Reason]struct{}),
		set:     make(chan struct{}),
	}
}

// Set idempotently adds reason to the set. The first call on any given
// Stopper, regardless of which reason, records When() and wakes every
// waiter.
func (s *Stopper) Set(reason Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reasons[reason]; ok {
		return
	}
	first := len(s.reasons) == 0
	s.reasons[reason] = struct{}{}
	if first {
		s.when = s.clock.Now()
		close(s.set)
	}
}

// IsSet reports whether any reason has been set.
func (s *Stopper) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reasons) > 0
}

// IsSetReason reports whether the specific reason has been set.
func (s *Stopper) IsSetReason(reason Reason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reasons[reason]
	return ok
}

// When returns the instant the first reason was set, and whether any
// reason has been set at all. Once non-zero, the returned instant never
// changes.
func (s *Stopper) When() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reasons) == 0 {
		return time.Time{}, false
	}
	return s.when, true
}

// Cooperative returns a query-only view of the Stopper whose Wait
// suspends the calling goroutine without blocking an OS thread, for use
// inside the single-threaded runner loop.
func (s *Stopper) Cooperative() Cooperative { return Cooperative{s: s} }

// Blocking returns a query-only view of the Stopper whose Wait blocks
// the calling goroutine, for use by synchronous user handlers running on
// a worker goroutine.
func (s *Stopper) Blocking() Blocking { return Blocking{s: s} }

// Cooperative is the scheduler-friendly read-only Stopper facade.
type Cooperative struct{ s *Stopper }

func (c Cooperative) IsSet() bool                     { return c.s.IsSet() }
func (c Cooperative) IsSetReason(reason Reason) bool   { return c.s.IsSetReason(reason) }
func (c Cooperative) When() (time.Time, bool)          { return c.s.When() }

// Wait suspends until the Stopper is set or ctx is done, returning
// whether it became set.
func (c Cooperative) Wait(ctx context.Context) bool {
	select {
	case <-c.s.set:
		return true
	case <-ctx.Done():
		return false
	}
}

// Done returns a channel closed the instant the Stopper is first set,
// suitable for direct use in a select alongside other cases (mirroring
// context.Context.Done()).
func (c Cooperative) Done() <-chan struct{} { return c.s.set }

// Blocking is the worker-goroutine read-only Stopper facade.
type Blocking struct{ s *Stopper }

func (b Blocking) IsSet() bool                   { return b.s.IsSet() }
func (b Blocking) IsSetReason(reason Reason) bool { return b.s.IsSetReason(reason) }
func (b Blocking) When() (time.Time, bool)        { return b.s.When() }

// Wait blocks up to timeout, returning whether the Stopper became set
// within that window. A non-positive timeout is treated as "wait
// forever".
func (b Blocking) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		<-b.s.set
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-b.s.set:
		return true
	case <-timer.C:
		return false
	}
}
