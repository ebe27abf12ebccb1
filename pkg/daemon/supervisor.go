package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Supervisor owns the Spawn/stop lifecycle of daemon and timer handler
// tasks for every resource it is told about. It never talks to the
// cluster's watch stream directly; a caller (the out-of-scope
// processing loop) tells it when a resource's handlers should be
// spawned, touched, or stopped.
type Supervisor struct {
	Runner *Runner
	Clock  Clock
	Notify LeakNotifier
	Logger logr.Logger
}

// NewSupervisor builds a Supervisor with the given collaborators. If
// notify is nil, abandoned daemons are only logged.
func NewSupervisor(runner *Runner, clock Clock, notify LeakNotifier, logger logr.Logger) *Supervisor {
	if notify == nil {
		notify = LoggingLeakNotifier{Logger: logger}
	}
	return &Supervisor{Runner: runner, Clock: clock, Notify: notify, Logger: logger}
}

// Spawn starts one runner goroutine per handler in handlers that memory
// is not already tracking. It is idempotent: calling it again for
// handlers already running is a no-op for those handlers.
func (s *Supervisor) Spawn(ctx context.Context, memory *ResourceMemory, handlers []SpawningHandler) {
	for _, h := range handlers {
		if _, exists := memory.get(h.ID); exists {
			continue
		}
		recordCtx, cancel := context.WithCancel(ctx)
		record := newDaemonRecord(h, s.Clock, cancel)
		memory.put(record)
		RecordSpawn(h.Kind)
		go func(record *DaemonRecord) {
			defer RecordExit()
			s.Runner.Run(recordCtx, memory, record)
		}(record)
	}
}

// StopForDeletion advances the termination protocol for every tracked
// daemon/timer by one step and returns the delay the caller should wait
// before calling again, and whether every daemon has now fully exited.
// It never blocks: this is the multi-cycle protocol meant to be driven
// by an external, re-entrant processing loop (e.g. one retry per
// reconcile of a resource pending deletion).
func (s *Supervisor) StopForDeletion(memory *ResourceMemory) (delay time.Duration, done bool) {
	records := memory.Records()
	if len(records) == 0 {
		return 0, true
	}

	now := s.Clock.Now()
	allDone := true
	var minDelay time.Duration

	for _, record := range records {
		if isDone(record) {
			memory.remove(record.Handler.ID)
			continue
		}
		if delay := s.advancePhase(memory.Resource, record, ResourceDeleted, now); allDone || delay < minDelay {
			minDelay = delay
		}
		allDone = false
	}
	return minDelay, allDone
}

// advancePhase idempotently signals record for reason and, based on how
// long it has been since the signal, force-cancels or abandons it. It
// returns the delay the caller should wait before re-checking this
// record. A handler with no configured backoff/timeout is never
// force-cancelled; it is only re-checked at the polling cadence.
func (s *Supervisor) advancePhase(resource ResourceID, record *DaemonRecord, reason Reason, now time.Time) time.Duration {
	wasSet := record.Stopper.IsSet()
	record.Stopper.Set(reason)
	record.Stopper.Set(DaemonSignalled)
	if !wasSet {
		RecordSignalled(reason)
	}

	when, _ := record.Stopper.When()
	elapsed := now.Sub(when)
	backoff, backoffSet := record.Handler.cancellationBackoff()
	timeout, timeoutSet := record.Handler.cancellationTimeout()

	if backoffSet && elapsed < backoff {
		return backoff - elapsed
	}

	if timeoutSet {
		if elapsed < backoff+timeout {
			if !record.Stopper.IsSetReason(DaemonCancelled) {
				record.Stopper.Set(DaemonCancelled)
				record.Cancel()
				RecordCancelled()
			}
			return backoff + timeout - elapsed
		}
		if !record.Stopper.IsSetReason(DaemonAbandoned) {
			record.Stopper.Set(DaemonAbandoned)
			RecordAbandoned()
			s.Notify.NotifyLeak(context.Background(), resource, record.Handler.ID)
		}
		return 0
	}

	// No configured cancellation deadline: never force-cancel, just
	// re-check at the default polling cadence.
	return record.Handler.cancellationPolling()
}

// StopInMemory runs the termination protocol for every tracked
// daemon/timer to completion, blocking until each has exited, been
// force-cancelled and exited, or been abandoned. It is the linear
// protocol used by the operator-exit Killer, where there is no
// processing loop left to drive repeated cycles.
func (s *Supervisor) StopInMemory(ctx context.Context, memory *ResourceMemory, reason Reason) {
	var wg sync.WaitGroup
	for _, record := range memory.Records() {
		record := record
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.stopOneBlocking(ctx, memory.Resource, record, reason)
		}()
	}
	wg.Wait()
}

func (s *Supervisor) stopOneBlocking(ctx context.Context, resource ResourceID, record *DaemonRecord, reason Reason) {
	wasSet := record.Stopper.IsSet()
	record.Stopper.Set(reason)
	record.Stopper.Set(DaemonSignalled)
	if !wasSet {
		RecordSignalled(reason)
	}

	if backoff, ok := record.Handler.cancellationBackoff(); ok {
		if waitDone(ctx, s.Clock, record, backoff) {
			return
		}
	}
	if isDone(record) {
		return
	}

	if timeout, ok := record.Handler.cancellationTimeout(); ok {
		record.Stopper.Set(DaemonCancelled)
		record.Cancel()
		RecordCancelled()

		if waitDone(ctx, s.Clock, record, timeout) {
			return
		}
	}

	record.Stopper.Set(DaemonAbandoned)
	RecordAbandoned()
	s.Notify.NotifyLeak(ctx, resource, record.Handler.ID)
}

// isDone reports whether record's runner goroutine has already
// returned, without blocking.
func isDone(record *DaemonRecord) bool {
	select {
	case <-record.Done:
		return true
	default:
		return false
	}
}

// waitDone blocks until record.Done closes, ctx is cancelled, or
// timeout elapses, returning whether it closed. A non-positive timeout
// is a zero-length grace period, not "wait forever": it only reports
// whatever is already true.
func waitDone(ctx context.Context, clock Clock, record *DaemonRecord, timeout time.Duration) bool {
	if timeout <= 0 {
		return isDone(record)
	}
	timer := clock.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-record.Done:
		return true
	case <-timer.C():
		return false
	case <-ctx.Done():
		return false
	}
}
