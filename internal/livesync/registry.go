package livesync

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultIntervals are the canonical refresh intervals.
var DefaultIntervals = map[Key]time.Duration{
	KeyPrice:   3000 * time.Millisecond,
	KeyStatus:  2000 * time.Millisecond,
	KeyLogs:    1500 * time.Millisecond,
	KeyHistory: 5000 * time.Millisecond,
	KeyHealth:  5000 * time.Millisecond,
}

type definition struct {
	work     Work
	interval time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAfter replaces time.After for the delay between cycles.
func WithAfter(after func(time.Duration) <-chan time.Time) RegistryOption {
	return func(r *Registry) { r.after = after }
}

// Registry owns the running refresh tasks and the global enable flag.
// Tasks start disabled until ResumeAll.
type Registry struct {
	logger *zap.Logger
	after  func(time.Duration) <-chan time.Time
	base   context.Context
	abort  context.CancelFunc

	enabled atomic.Bool

	// lifecycle serializes PauseAll, ResumeAll and Close so the enable flag
	// and the running set always change together.
	lifecycle sync.Mutex

	mu          sync.Mutex
	handles     map[Key]*Handle
	definitions map[Key]definition
	wg          sync.WaitGroup
}

// NewRegistry creates an empty, disabled registry.
func NewRegistry(logger *zap.Logger, opts ...RegistryOption) *Registry {
	base, abort := context.WithCancel(context.Background())
	r := &Registry{
		logger:      logger,
		after:       time.After,
		base:        base,
		abort:       abort,
		handles:     make(map[Key]*Handle),
		definitions: make(map[Key]definition),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Define records the work and interval ResumeAll starts key with.
func (r *Registry) Define(key Key, work Work, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions[key] = definition{work: work, interval: interval}
}

// Start replaces any task under key with a new one whose first cycle runs
// immediately.
func (r *Registry) Start(key Key, work Work, interval time.Duration) *Handle {
	h := newHandle(r.base, key, work, interval)

	r.mu.Lock()
	if old, ok := r.handles[key]; ok {
		old.stop()
	}
	r.handles[key] = h
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		h.loop(&r.enabled, r.after, r.logger)
	}()
	return h
}

// Stop cancels the task under key, including its in-flight cycle. Stopping
// an unknown key does nothing.
func (r *Registry) Stop(key Key) {
	r.mu.Lock()
	h, ok := r.handles[key]
	delete(r.handles, key)
	r.mu.Unlock()
	if ok {
		h.stop()
	}
}

// PauseAll disables the registry and stops every task.
func (r *Registry) PauseAll() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	r.pauseAll()
}

func (r *Registry) pauseAll() {
	r.enabled.Store(false)
	for _, key := range r.Keys() {
		r.Stop(key)
	}
	r.logger.Debug("Refresh loops paused")
}

// ResumeAll enables the registry and restarts every defined task, the
// canonical keys first.
func (r *Registry) ResumeAll() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	r.enabled.Store(true)

	r.mu.Lock()
	keys := make([]Key, 0, len(r.definitions))
	for _, key := range CanonicalKeys {
		if _, ok := r.definitions[key]; ok {
			keys = append(keys, key)
		}
	}
	var extra []Key
	for key := range r.definitions {
		if !isCanonical(key) {
			extra = append(extra, key)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	keys = append(keys, extra...)
	defs := make([]definition, len(keys))
	for i, key := range keys {
		defs[i] = r.definitions[key]
	}
	r.mu.Unlock()

	for i, key := range keys {
		r.Start(key, defs[i].work, defs[i].interval)
	}
	r.logger.Debug("Refresh loops resumed", zap.Int("tasks", len(keys)))
}

// Trigger runs key's work once outside its schedule. The run waits for an
// in-flight cycle to finish and is cancelled by Stop. While a trigger for
// key is waiting to run, further triggers are dropped. It reports whether
// a run was queued.
func (r *Registry) Trigger(key Key) bool {
	r.mu.Lock()
	h, ok := r.handles[key]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if !h.triggerPending.CompareAndSwap(false, true) {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		h.trigger(r.logger)
	}()
	return true
}

// Handle returns the task under key.
func (r *Registry) Handle(key Key) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[key]
	return h, ok
}

// Keys lists the running tasks, sorted.
func (r *Registry) Keys() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]Key, 0, len(r.handles))
	for key := range r.handles {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Enabled reports the global enable flag.
func (r *Registry) Enabled() bool {
	return r.enabled.Load()
}

// Close pauses everything and waits for all task goroutines to exit.
func (r *Registry) Close() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	r.pauseAll()
	r.abort()
	r.wg.Wait()
}

func isCanonical(key Key) bool {
	for _, k := range CanonicalKeys {
		if k == key {
			return true
		}
	}
	return false
}
