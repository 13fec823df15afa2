// Package simrm provides a reference kernel.ResourceManager: it grants
// every acquisition immediately and never preempts, suitable for tests and
// the demo daemon. A component that wants to exercise preemption can
// call Preempt/PreemptEnd directly to drive the registered callbacks.
package simrm

import (
	"sync"

	"github.com/tizedge/omxkernel/internal/kernel"
)

// RM is a reference kernel.ResourceManager implementation.
type RM struct {
	mu   sync.Mutex
	name string
	cb   kernel.ResourceManagerCallbacks
	init bool
}

// New creates an RM proxy that always grants.
func New() *RM { return &RM{} }

func (r *RM) Init(componentName string, priority int, cb kernel.ResourceManagerCallbacks) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = componentName
	r.cb = cb
	r.init = true
	return nil
}

func (r *RM) Deinit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.init = false
	return nil
}

func (r *RM) Acquire() (kernel.RMOutcome, error) {
	return kernel.RMGranted, nil
}

func (r *RM) Release() error { return nil }

// Preempt drives the registered OnPreempt callback, as the real RM proxy
// would when another higher-priority component needs this component's
// resources (§4.8).
func (r *RM) Preempt(rid string) {
	r.mu.Lock()
	cb := r.cb.OnPreempt
	r.mu.Unlock()
	if cb != nil {
		cb(rid)
	}
}

// PreemptEnd drives the registered OnPreemptEnd callback.
func (r *RM) PreemptEnd(rid string) {
	r.mu.Lock()
	cb := r.cb.OnPreemptEnd
	r.mu.Unlock()
	if cb != nil {
		cb(rid)
	}
}

// WaitComplete drives the registered OnWaitComplete callback.
func (r *RM) WaitComplete(rid string) {
	r.mu.Lock()
	cb := r.cb.OnWaitComplete
	r.mu.Unlock()
	if cb != nil {
		cb(rid)
	}
}
