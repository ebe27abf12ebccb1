package daemon

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// Killer is the operator-exit root task: when the operator process is
// shutting down, it runs the stop-in-memory termination protocol for
// every resource's daemons concurrently, and waits for all of them to
// either finish or be abandoned before returning.
type Killer struct {
	Supervisor *Supervisor
	Logger     logr.Logger

	mu       sync.Mutex
	memories map[ResourceID]*ResourceMemory
}

// NewKiller builds a Killer tracking resources registered via Track.
func NewKiller(supervisor *Supervisor, logger logr.Logger) *Killer {
	return &Killer{Supervisor: supervisor, Logger: logger, memories: make(map[ResourceID]*ResourceMemory)}
}

// Track registers memory so a future Run fans out to it. A Supervisor
// caller should register every ResourceMemory it creates exactly once.
func (k *Killer) Track(memory *ResourceMemory) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.memories[memory.Resource] = memory
}

// Forget drops memory from tracking, e.g. once its last daemon has
// exited and the resource's finalizer has been removed.
func (k *Killer) Forget(resource ResourceID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.memories, resource)
}

// Run signals every tracked resource's daemons with OperatorExiting and
// blocks until each has finished its stop-in-memory protocol. It never
// returns an error: an individual resource whose daemons had to be
// abandoned is logged and counted in metrics, not surfaced as a fatal
// failure of the shutdown sequence as a whole.
func (k *Killer) Run(ctx context.Context) error {
	k.mu.Lock()
	memories := make([]*ResourceMemory, 0, len(k.memories))
	for _, m := range k.memories {
		memories = append(memories, m)
	}
	k.mu.Unlock()

	k.Logger.Info("operator exiting: stopping daemons", "resources", len(memories))

	g, gctx := errgroup.WithContext(ctx)
	for _, memory := range memories {
		memory := memory
		g.Go(func() error {
			k.Supervisor.StopInMemory(gctx, memory, OperatorExiting)
			return nil
		})
	}
	return g.Wait()
}
