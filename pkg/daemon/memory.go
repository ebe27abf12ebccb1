package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// StopperView is the query-only capability a running handler body is
// given: it may ask whether (and why, and since when) it should wind
// down, but it may never set the signal itself. Cooperative and
// Blocking both satisfy it; which one a Cause carries depends on
// whether its handler is marked Blocking.
type StopperView interface {
	IsSet() bool
	IsSetReason(reason Reason) bool
	When() (time.Time, bool)
}

// Memo is a per-daemon scratchpad that survives across repeated
// handler invocations (each retry, each timer tick) for the lifetime of
// the owning ResourceMemory, distinct from the resource's own status.
type Memo struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewMemo returns an empty Memo.
func NewMemo() *Memo { return &Memo{data: make(map[string]any)} }

func (m *Memo) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *Memo) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *Memo) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// Cause is the single argument passed to a HandlerFunc. It bundles the
// resource identity, a logger scoped to the daemon, the patch
// accumulator the handler may contribute to, a query-only stopper view,
// and the handler's durable memo.
type Cause struct {
	Resource ResourceID
	Logger   logr.Logger
	Patch    *Patch
	Stopper  StopperView
	Memo     *Memo
}

// Patch accumulates status and metadata fragments a handler invocation
// wants merged into the live resource. It is applied (and cleared) by
// the runner after every invocation that produced a non-empty patch.
type Patch struct {
	mu       sync.Mutex
	status   map[string]any
	metadata map[string]any
}

// NewPatch returns an empty Patch.
func NewPatch() *Patch {
	return &Patch{status: map[string]any{}, metadata: map[string]any{}}
}

// SetStatus merges value under status.<key>.
func (p *Patch) SetStatus(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[key] = value
}

// SetMetadata merges value under metadata.<key> (e.g. a finalizer list).
func (p *Patch) SetMetadata(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadata[key] = value
}

// Empty reports whether the patch has nothing to apply.
func (p *Patch) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.status) == 0 && len(p.metadata) == 0
}

// Build renders the accumulated fragments into a JSON-mergeable body,
// e.g. {"status": {...}, "metadata": {...}}, omitting empty sections.
func (p *Patch) Build() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	body := map[string]any{}
	if len(p.status) > 0 {
		body["status"] = cloneMap(p.status)
	}
	if len(p.metadata) > 0 {
		body["metadata"] = cloneMap(p.metadata)
	}
	return body
}

// Clear resets the patch to empty, for reuse on the next invocation.
func (p *Patch) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = map[string]any{}
	p.metadata = map[string]any{}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// DaemonRecord is everything the Supervisor tracks for one running
// handler task: its descriptor, its private Stopper, the cancellation
// func for its runner goroutine's context, a channel closed when the
// runner goroutine has returned, and its durable Memo and last retry
// state.
type DaemonRecord struct {
	Handler SpawningHandler
	Stopper *Stopper
	Cancel  context.CancelFunc
	Done    chan struct{}
	Memo    *Memo

	mu    sync.Mutex
	State InvocationState
}

func newDaemonRecord(handler SpawningHandler, clock Clock, cancel context.CancelFunc) *DaemonRecord {
	return &DaemonRecord{
		Handler: handler,
		Stopper: NewStopper(clock),
		Cancel:  cancel,
		Done:    make(chan struct{}),
		Memo:    NewMemo(),
		State:   FreshState(),
	}
}

func (r *DaemonRecord) setState(s InvocationState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = s
}

func (r *DaemonRecord) getState() InvocationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State
}

// ResourceMemory holds every running daemon/timer record for a single
// watched resource. The caller creates one per resource and passes it to
// the Supervisor's Spawn and stop methods; the Supervisor itself keeps
// no index of memories. It also tracks the instant of the resource's
// last watch event, the reference point idle-gated timers measure their
// quiet period against.
type ResourceMemory struct {
	Resource ResourceID

	mu        sync.Mutex
	daemons   map[ID]*DaemonRecord
	lastEvent time.Time
}

// NewResourceMemory returns empty tracking state for resource, with the
// idle clock started at now.
func NewResourceMemory(resource ResourceID, now time.Time) *ResourceMemory {
	return &ResourceMemory{Resource: resource, daemons: make(map[ID]*DaemonRecord), lastEvent: now}
}

// Touch records that a new watch event for the resource arrived at t,
// resetting the idle clock every idle-gated timer measures against.
func (m *ResourceMemory) Touch(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.After(m.lastEvent) {
		m.lastEvent = t
	}
}

// QuietFor reports how long it has been since the last watch event, as
// of now.
func (m *ResourceMemory) QuietFor(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return now.Sub(m.lastEvent)
}

// LastEventAfter reports whether the most recent watch event arrived
// after t.
func (m *ResourceMemory) LastEventAfter(t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastEvent.After(t)
}

func (m *ResourceMemory) put(record *DaemonRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daemons[record.Handler.ID] = record
}

func (m *ResourceMemory) get(id ID) (*DaemonRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.daemons[id]
	return r, ok
}

func (m *ResourceMemory) remove(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.daemons, id)
}

// Records returns a stable snapshot of every currently tracked record.
func (m *ResourceMemory) Records() []*DaemonRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*DaemonRecord, 0, len(m.daemons))
	for _, r := range m.daemons {
		out = append(out, r)
	}
	return out
}

// Len reports how many daemon/timer records are currently tracked.
func (m *ResourceMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.daemons)
}
