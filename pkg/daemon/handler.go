package daemon

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Kind tags which shape a SpawningHandler takes. A third, unsupported
// kind must fail loudly wherever it is dispatched on.
type Kind int

const (
	// KindUnsupported is the zero value: a handler that has not been
	// built through NewDaemonHandler/NewTimerHandler. Dispatching on it
	// is always a bug.
	KindUnsupported Kind = iota
	KindDaemon
	KindTimer
)

func (k Kind) String() string {
	switch k {
	case KindDaemon:
		return "daemon"
	case KindTimer:
		return "timer"
	default:
		return "unsupported"
	}
}

// SpawningHandler is the immutable, tagged-variant descriptor for a
// user-registered daemon or timer handler. Exactly one of Daemon or Timer
// is populated, selected by Kind.
type SpawningHandler struct {
	// ID is the handler's declared identifier; it must be unique among
	// the spawning handlers of a single resource.
	ID   ID
	Kind Kind

	Daemon *DaemonSpec
	Timer  *TimerSpec

	// Blocking marks a handler expected to make blocking calls of its
	// own (I/O, CPU-bound work). The invocation engine offloads it to a
	// worker pool instead of running it in the scheduling goroutine.
	Blocking bool

	// Fn is the user-supplied function. Invocation is delegated to an
	// InvocationEngine, which is the only thing that calls it; the
	// runner never calls it directly.
	Fn HandlerFunc
}

// HandlerFunc is a user daemon/timer body. A nil error is success; a
// non-nil error is classified by the InvocationEngine as temporary
// (retried) or permanent (terminal).
type HandlerFunc func(Cause) error

// DaemonSpec carries the optional timing knobs of a daemon handler.
type DaemonSpec struct {
	InitialDelay *time.Duration `validate:"omitempty,min=0"`
	// CancellationBackoff is the grace period before a forceful cancel
	// is attempted during deletion.
	CancellationBackoff *time.Duration `validate:"omitempty,min=0"`
	// CancellationTimeout is the wall-clock budget after the forceful
	// cancel, before the daemon is considered abandoned.
	CancellationTimeout *time.Duration `validate:"omitempty,min=0"`
	// CancellationPolling is the re-check cadence used while waiting on
	// an unbounded deletion window; defaults to DefaultPollingInterval.
	CancellationPolling *time.Duration `validate:"omitempty,min=0"`
}

// TimerSpec carries the optional timing knobs of a timer handler.
type TimerSpec struct {
	InitialDelay *time.Duration `validate:"omitempty,min=0"`
	// Interval is the period between invocations.
	Interval *time.Duration `validate:"omitempty,min=0"`
	// Idle is the minimum quiet time since the last watch event before
	// the timer is allowed to fire.
	Idle *time.Duration `validate:"omitempty,min=0"`
	// Sharp aligns firings to a fixed interval-sized grid regardless of
	// handler duration, instead of measuring the interval from the
	// previous completion.
	Sharp bool
}

// DefaultPollingInterval is the default cadence stop-for-deletion uses to
// re-check a timer that has no configured cancellation deadlines.
const DefaultPollingInterval = 60 * time.Second

// NewDaemonHandler builds a validated daemon SpawningHandler.
func NewDaemonHandler(id ID, fn HandlerFunc, spec DaemonSpec) (SpawningHandler, error) {
	if err := validate.Struct(spec); err != nil {
		return SpawningHandler{}, fmt.Errorf("invalid daemon handler %q: %w", id, err)
	}
	return SpawningHandler{ID: id, Kind: KindDaemon, Daemon: &spec, Fn: fn}, nil
}

// NewTimerHandler builds a validated timer SpawningHandler.
func NewTimerHandler(id ID, fn HandlerFunc, spec TimerSpec) (SpawningHandler, error) {
	if err := validate.Struct(spec); err != nil {
		return SpawningHandler{}, fmt.Errorf("invalid timer handler %q: %w", id, err)
	}
	return SpawningHandler{ID: id, Kind: KindTimer, Timer: &spec, Fn: fn}, nil
}

// cancellationPolling returns the configured re-check cadence, or the
// package default.
func (h SpawningHandler) cancellationPolling() time.Duration {
	if h.Kind == KindDaemon && h.Daemon.CancellationPolling != nil {
		return *h.Daemon.CancellationPolling
	}
	return DefaultPollingInterval
}

// cancellationBackoff returns the configured grace period before a
// forceful cancel is attempted, and whether one was configured at all.
// An unconfigured backoff must never be treated as a configured zero.
func (h SpawningHandler) cancellationBackoff() (backoff time.Duration, configured bool) {
	if h.Kind == KindDaemon && h.Daemon.CancellationBackoff != nil {
		return *h.Daemon.CancellationBackoff, true
	}
	return 0, false
}

// cancellationTimeout returns the configured wall-clock budget after a
// forceful cancel before the daemon is considered abandoned, and whether
// one was configured at all. An unconfigured timeout must never be
// treated as a configured zero.
func (h SpawningHandler) cancellationTimeout() (timeout time.Duration, configured bool) {
	if h.Kind == KindDaemon && h.Daemon.CancellationTimeout != nil {
		return *h.Daemon.CancellationTimeout, true
	}
	return 0, false
}

func (h SpawningHandler) initialDelay() *time.Duration {
	switch h.Kind {
	case KindDaemon:
		return h.Daemon.InitialDelay
	case KindTimer:
		return h.Timer.InitialDelay
	default:
		return nil
	}
}
