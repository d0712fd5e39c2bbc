package dag

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ExecutionContext is the per-run token handed to every node: a one-way
// cancellation flag, the run progress and free-form metadata. It is safe
// for concurrent use.
type ExecutionContext struct {
	runID     string
	cancelled atomic.Bool
	progress  atomic.Uint64

	mu       sync.RWMutex
	metadata map[string]any
	cancelFn context.CancelFunc
}

// NewExecutionContext creates a context with a fresh run id.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		runID:    uuid.NewString(),
		metadata: make(map[string]any),
	}
}

// RunID identifies the run in logs, events and results.
func (ec *ExecutionContext) RunID() string { return ec.runID }

// Cancel requests that the run stop before the next node starts. The node
// currently executing sees its context cancelled. Calling it again is a no-op.
func (ec *ExecutionContext) Cancel() {
	if !ec.cancelled.CompareAndSwap(false, true) {
		return
	}
	ec.mu.RLock()
	fn := ec.cancelFn
	ec.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// IsCancelled reports whether Cancel has been called.
func (ec *ExecutionContext) IsCancelled() bool { return ec.cancelled.Load() }

// Progress returns the run progress in [0, 1].
func (ec *ExecutionContext) Progress() float64 {
	return math.Float64frombits(ec.progress.Load())
}

// SetProgress stores p clamped to [0, 1].
func (ec *ExecutionContext) SetProgress(p float64) {
	switch {
	case math.IsNaN(p) || p < 0:
		p = 0
	case p > 1:
		p = 1
	}
	ec.progress.Store(math.Float64bits(p))
}

// Set stores a metadata value.
func (ec *ExecutionContext) Set(key string, v any) {
	ec.mu.Lock()
	if ec.metadata == nil {
		ec.metadata = make(map[string]any)
	}
	ec.metadata[key] = v
	ec.mu.Unlock()
}

// Get reads a metadata value.
func (ec *ExecutionContext) Get(key string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.metadata[key]
	return v, ok
}

// Metadata returns a copy of all metadata.
func (ec *ExecutionContext) Metadata() map[string]any {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make(map[string]any, len(ec.metadata))
	for k, v := range ec.metadata {
		out[k] = v
	}
	return out
}

// bind links the run's context cancel func so Cancel also aborts blocking
// node work. A context cancelled before bind cancels immediately.
func (ec *ExecutionContext) bind(fn context.CancelFunc) {
	ec.mu.Lock()
	ec.cancelFn = fn
	ec.mu.Unlock()
	if ec.cancelled.Load() && fn != nil {
		fn()
	}
}
