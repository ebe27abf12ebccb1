package daemon

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// Runner drives exactly one SpawningHandler, from spawn to exit, against
// one DaemonRecord. Whatever path it leaves by — normal completion,
// permanent handler error, or stopper-driven cancellation — it always
// sets the record's Stopper to Done and closes record.Done exactly
// once before returning.
type Runner struct {
	Engine  InvocationEngine
	Applier PatchApplier
	Clock   Clock
	Logger  logr.Logger
}

// NewRunner builds a Runner with the given collaborators.
func NewRunner(engine InvocationEngine, applier PatchApplier, clock Clock, logger logr.Logger) *Runner {
	return &Runner{Engine: engine, Applier: applier, Clock: clock, Logger: logger}
}

// Run is the guard task body: it is meant to be launched as its own
// goroutine by a Supervisor, one per DaemonRecord.
func (r *Runner) Run(ctx context.Context, memory *ResourceMemory, record *DaemonRecord) {
	defer close(record.Done)
	defer record.Stopper.Set(Done)

	cause := Cause{
		Resource: memory.Resource,
		Logger:   r.Logger.WithValues("resource", memory.Resource.String(), "daemon", string(record.Handler.ID)),
		Patch:    NewPatch(),
		Stopper:  stopperView(record),
		Memo:     record.Memo,
	}

	switch record.Handler.Kind {
	case KindDaemon:
		r.runDaemon(ctx, record, cause)
	case KindTimer:
		r.runTimer(ctx, memory, record, cause)
	default:
		cause.Logger.Error(ErrInternalInvariantViolation, "daemon: dispatch on handler with unsupported kind")
	}
}

func stopperView(record *DaemonRecord) StopperView {
	if record.Handler.Blocking {
		return record.Stopper.Blocking()
	}
	return record.Stopper.Cooperative()
}

// runDaemon runs a long-lived handler body: an initial delay, then
// repeated invocations for as long as it returns a temporary error,
// each separated by the classifier's retry delay, until it succeeds,
// fails permanently, or the stopper fires.
func (r *Runner) runDaemon(ctx context.Context, record *DaemonRecord, cause Cause) {
	coop := record.Stopper.Cooperative()
	if d := record.Handler.initialDelay(); d != nil {
		sleepOrWait(ctx, r.Clock, d, coop)
	}

	for !record.Stopper.IsSet() {
		state := r.invokeOnce(ctx, record, cause)
		if state.Done {
			return
		}
		delay := state.Delay
		sleepOrWait(ctx, r.Clock, &delay, coop)
	}
}

// runTimer drives a periodic handler: an optional initial delay, then
// an idle gate (if configured) before every tick, then the tick itself,
// then either sharp (grid-aligned) or drifting interval scheduling for
// the next one, until the handler fails permanently or the stopper
// fires. A timer with neither Interval nor Idle fires once and returns.
func (r *Runner) runTimer(ctx context.Context, memory *ResourceMemory, record *DaemonRecord, cause Cause) {
	spec := record.Handler.Timer
	coop := record.Stopper.Cooperative()

	if spec.InitialDelay != nil {
		sleepOrWait(ctx, r.Clock, spec.InitialDelay, coop)
	}

	for !record.Stopper.IsSet() {
		if record.getState().Done {
			// A successful firing forgets its retry history before the
			// next tick; only the current activation's retries count.
			record.setState(FreshState())
		}

		if spec.Idle != nil && *spec.Idle > 0 {
			if !r.waitForIdle(ctx, memory, *spec.Idle, coop) {
				return // stopper fired while waiting out the idle gate
			}
		}

		started := r.Clock.Now()
		state := r.invokeOnce(ctx, record, cause)
		if state.Done && state.Err != nil {
			return // permanent failure ends the timer
		}

		switch {
		case !state.Done:
			// Failure with retry: honor the engine's own backoff, not
			// the tick interval.
			next := state.Delay
			sleepOrWait(ctx, r.Clock, &next, coop)
		case spec.Interval != nil && spec.Sharp:
			elapsed := r.Clock.Now().Sub(started) % *spec.Interval
			next := *spec.Interval - elapsed
			sleepOrWait(ctx, r.Clock, &next, coop)
		case spec.Interval != nil:
			next := *spec.Interval
			sleepOrWait(ctx, r.Clock, &next, coop)
		case spec.Idle != nil:
			// Idle alone, no interval: wait for the next watch event
			// rather than firing again on a timer.
			if !r.waitForNextEvent(ctx, memory, started, *spec.Idle, coop) {
				return
			}
		default:
			return // degenerate one-shot timer: nothing left to schedule
		}
	}
}

// waitForIdle blocks until the resource has been quiet for idle,
// re-checking at DefaultPollingInterval cadence so a resource that keeps
// receiving watch events never lets the timer fire. Returns false if the
// stopper fired first.
func (r *Runner) waitForIdle(ctx context.Context, memory *ResourceMemory, idle time.Duration, coop Cooperative) bool {
	for {
		if coop.IsSet() {
			return false
		}
		quiet := memory.QuietFor(r.Clock.Now())
		if quiet >= idle {
			return true
		}
		wait := idle - quiet
		if wait > DefaultPollingInterval {
			wait = DefaultPollingInterval
		}
		sleepOrWait(ctx, r.Clock, &wait, coop)
	}
}

// waitForNextEvent blocks until the resource has received a watch event
// after since, re-checking at the idle cadence. Used by idle-only timers
// (no configured interval), which fire again only once the resource has
// moved instead of on a fixed period. Returns false if the stopper fired
// first.
func (r *Runner) waitForNextEvent(ctx context.Context, memory *ResourceMemory, since time.Time, idle time.Duration, coop Cooperative) bool {
	for {
		if coop.IsSet() {
			return false
		}
		if memory.LastEventAfter(since) {
			return true
		}
		wait := idle
		sleepOrWait(ctx, r.Clock, &wait, coop)
	}
}

// invokeOnce executes the handler once, folds the result into the
// record's retry state, delivers any result fragment into the cause's
// patch, and applies the patch if non-empty.
func (r *Runner) invokeOnce(ctx context.Context, record *DaemonRecord, cause Cause) InvocationState {
	state := record.getState()
	state = r.Engine.ExecuteOnce(ctx, record.Handler, cause, state)
	record.setState(state)

	r.Engine.DeliverResults(record.Handler, state, cause.Patch)
	if !cause.Patch.Empty() {
		if err := r.Applier.Apply(ctx, cause.Resource, cause.Patch); err != nil {
			cause.Logger.Error(ErrPatchFailure(cause.Resource, err), "failed to apply daemon patch")
		}
		cause.Patch.Clear()
	}
	return state
}
