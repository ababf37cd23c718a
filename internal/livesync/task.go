// Package livesync keeps the dashboard's remote views fresh. Each view is a
// refresh task on a fixed-delay loop; the registry starts, stops, pauses and
// accelerates them and the orchestrator sequences startup.
package livesync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Key names a refresh task.
type Key string

const (
	KeyPrice   Key = "price"
	KeyStatus  Key = "status"
	KeyLogs    Key = "logs"
	KeyHistory Key = "history"
	KeyHealth  Key = "health"
)

// CanonicalKeys is the task set ResumeAll restarts, in start order.
var CanonicalKeys = []Key{KeyPrice, KeyStatus, KeyLogs, KeyHistory, KeyHealth}

// Work is one refresh of a view. It must return promptly once ctx is done
// and must not render after that.
type Work func(ctx context.Context) error

// Handle is the live state of one running task.
type Handle struct {
	key      Key
	interval time.Duration
	work     Work

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// sem admits one execution, scheduled or triggered, at a time.
	sem            chan struct{}
	mu             sync.Mutex
	cycleCancel    context.CancelFunc
	triggerPending atomic.Bool

	cycles   atomic.Int64
	triggers atomic.Int64
	failures atomic.Int64
}

func newHandle(parent context.Context, key Key, work Work, interval time.Duration) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{
		key:      key,
		interval: interval,
		work:     work,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		sem:      make(chan struct{}, 1),
	}
}

// Key returns the task key.
func (h *Handle) Key() Key { return h.key }

// Interval returns the delay between cycles.
func (h *Handle) Interval() time.Duration { return h.interval }

// Alive reports whether the loop has not been stopped.
func (h *Handle) Alive() bool { return h.ctx.Err() == nil }

// InFlight reports whether an execution is running now.
func (h *Handle) InFlight() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cycleCancel != nil
}

// Cycles returns how many scheduled cycles have run their work.
func (h *Handle) Cycles() int64 { return h.cycles.Load() }

// Triggers returns how many out-of-band executions have run.
func (h *Handle) Triggers() int64 { return h.triggers.Load() }

// Failures returns how many executions returned an error or panicked.
func (h *Handle) Failures() int64 { return h.failures.Load() }

// Done is closed when the loop goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// stop cancels the loop and any in-flight execution.
func (h *Handle) stop() {
	h.cancel()
}

// loop runs cycles until the handle is stopped. The delay is measured from
// the end of each cycle. A cycle that finds the registry disabled does no
// work but still waits.
func (h *Handle) loop(enabled *atomic.Bool, after func(time.Duration) <-chan time.Time, logger *zap.Logger) {
	defer close(h.done)
	for {
		if h.ctx.Err() != nil {
			return
		}
		if enabled.Load() {
			if h.execute(logger, nil) {
				h.cycles.Add(1)
			}
		}
		select {
		case <-h.ctx.Done():
			return
		case <-after(h.interval):
		}
	}
}

// trigger runs one execution outside the schedule. It reports whether the
// execution ran.
func (h *Handle) trigger(logger *zap.Logger) bool {
	ran := h.execute(logger, func() { h.triggerPending.Store(false) })
	if ran {
		h.triggers.Add(1)
	}
	return ran
}

// execute runs the work once under a fresh cycle context. A non-nil onAdmit
// is called once the execution is admitted or the handle is stopped.
func (h *Handle) execute(logger *zap.Logger, onAdmit func()) bool {
	select {
	case h.sem <- struct{}{}:
	case <-h.ctx.Done():
		if onAdmit != nil {
			onAdmit()
		}
		return false
	}
	defer func() { <-h.sem }()
	if onAdmit != nil {
		onAdmit()
	}
	if h.ctx.Err() != nil {
		return false
	}

	cycleCtx, cancel := context.WithCancel(h.ctx)
	h.mu.Lock()
	h.cycleCancel = cancel
	h.mu.Unlock()

	err := h.run(cycleCtx)

	h.mu.Lock()
	h.cycleCancel = nil
	h.mu.Unlock()
	cancel()

	if err != nil {
		h.failures.Add(1)
		logger.Debug("Refresh failed", zap.String("task", string(h.key)), zap.Error(err))
	}
	return true
}

// run calls the work and turns a panic into an error.
func (h *Handle) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s refresh: %v", h.key, r)
		}
	}()
	return h.work(ctx)
}
