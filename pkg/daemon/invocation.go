package daemon

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InvocationState tracks one handler's retry history across repeated
// invocations by a Runner. Done is true once the handler has succeeded
// or failed permanently; in both cases it will not be retried or
// restarted by the current runner iteration.
type InvocationState struct {
	Done    bool
	Err     error
	Delay   time.Duration
	Retries int
}

// FreshState returns the zero-value retry state a new handler run starts
// from.
func FreshState() InvocationState { return InvocationState{} }

// PermanentError wraps a handler error to mark it as terminal: the
// invocation engine will not retry it, and the owning daemon exits.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// TemporaryError wraps a handler error with an explicit retry delay,
// overriding the engine's default backoff.
type TemporaryError struct {
	Err   error
	Delay time.Duration
}

func (e *TemporaryError) Error() string { return e.Err.Error() }
func (e *TemporaryError) Unwrap() error { return e.Err }

// Temporary marks err as retryable after delay.
func Temporary(err error, delay time.Duration) error {
	if err == nil {
		return nil
	}
	return &TemporaryError{Err: err, Delay: delay}
}

// ErrClassifier decides whether a handler error is permanent (the
// daemon exits) or temporary (retried after delay). It is the pluggable
// seam for a retry/backoff policy supplied by the caller, kept outside
// this core's scope.
type ErrClassifier func(err error) (permanent bool, delay time.Duration)

// DefaultClassifier retries every error every DefaultRetryDelay, unless
// the error is explicitly wrapped with Permanent or Temporary.
func DefaultClassifier(err error) (bool, time.Duration) {
	var perm *PermanentError
	if stderrors.As(err, &perm) {
		return true, 0
	}
	var temp *TemporaryError
	if stderrors.As(err, &temp) {
		return false, temp.Delay
	}
	return false, DefaultRetryDelay
}

// DefaultRetryDelay is used by DefaultClassifier for an unclassified
// error.
const DefaultRetryDelay = 10 * time.Second

// InvocationEngine executes a handler once and folds the result into a
// retry state, then (separately) delivers any produced result fragment
// into the patch accumulator. SyncEngine is the default, production
// implementation.
type InvocationEngine interface {
	ExecuteOnce(ctx context.Context, handler SpawningHandler, cause Cause, state InvocationState) InvocationState
	DeliverResults(handler SpawningHandler, state InvocationState, patch *Patch)
}

// SyncEngine is the default InvocationEngine: it calls HandlerFunc
// in-process, offloading handlers marked SpawningHandler.Blocking to a
// bounded worker pool so they cannot stall other daemons sharing the
// process.
type SyncEngine struct {
	Classify ErrClassifier
	Tracer   trace.Tracer
	pool     *workerPool
}

// SyncEngineOption configures a SyncEngine.
type SyncEngineOption func(*SyncEngine)

// WithClassifier overrides the default error classifier.
func WithClassifier(c ErrClassifier) SyncEngineOption {
	return func(e *SyncEngine) { e.Classify = c }
}

// WithWorkerPoolSize bounds the goroutine pool used for handlers marked
// Blocking. The zero value (no option) uses DefaultWorkerPoolSize.
func WithWorkerPoolSize(n int) SyncEngineOption {
	return func(e *SyncEngine) { e.pool = newWorkerPool(n) }
}

// DefaultWorkerPoolSize bounds the worker pool used for blocking
// handlers when no explicit size is configured.
const DefaultWorkerPoolSize = 16

// NewSyncEngine builds a SyncEngine with sensible defaults.
func NewSyncEngine(opts ...SyncEngineOption) *SyncEngine {
	e := &SyncEngine{
		Classify: DefaultClassifier,
		Tracer:   otel.Tracer("opcore/daemon"),
		pool:     newWorkerPool(DefaultWorkerPoolSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *SyncEngine) ExecuteOnce(ctx context.Context, handler SpawningHandler, cause Cause, state InvocationState) InvocationState {
	ctx, span := e.Tracer.Start(ctx, "daemon.invoke",
		trace.WithAttributes(
			attribute.String("daemon.id", string(handler.ID)),
			attribute.String("daemon.kind", handler.Kind.String()),
			attribute.Int("daemon.attempt", state.Retries+1),
		))
	defer span.End()

	var err error
	if handler.Blocking {
		err = e.pool.Run(ctx, func() error { return handler.Fn(cause) })
	} else {
		err = handler.Fn(cause)
	}

	state.Retries++
	if err == nil {
		state.Done = true
		state.Err = nil
		state.Delay = 0
		return state
	}

	permanent, delay := e.Classify(err)
	state.Err = err
	if permanent {
		state.Done = true
		state.Delay = 0
	} else {
		state.Done = false
		state.Delay = delay
	}
	return state
}

// DeliverResults writes the last error (if any) into the patch's status
// fragment for this handler. The default engine has no structured
// handler return value beyond error, so this is the only result surface
// it produces.
func (e *SyncEngine) DeliverResults(handler SpawningHandler, state InvocationState, patch *Patch) {
	if state.Err == nil {
		return
	}
	patch.SetStatus(string(handler.ID), map[string]any{
		"error":   state.Err.Error(),
		"retries": state.Retries,
	})
}
