// Package simfsm provides a reference kernel.FSM: a mutex-guarded
// top-level state machine that advances its substate in response to the
// kernel's completion callbacks, in the same style as the lifecycle
// manager's mutex-guarded instance state machine.
package simfsm

import (
	"sync"

	"github.com/tizedge/omxkernel/internal/kernel"
)

// FSM is a reference kernel.FSM implementation.
type FSM struct {
	mu       sync.Mutex
	substate kernel.Substate

	onTransition func(target kernel.State, err error)
	onCommand    func(cmd kernel.Command, port int, err error)
}

// New creates an FSM starting in SubstateLoaded.
func New() *FSM {
	return &FSM{substate: kernel.SubstateLoaded}
}

// OnTransition registers a hook invoked whenever CompleteTransition fires;
// tests use this to assert on the sequence of transitions observed.
func (f *FSM) OnTransition(fn func(target kernel.State, err error)) {
	f.mu.Lock()
	f.onTransition = fn
	f.mu.Unlock()
}

// OnCommand registers a hook invoked whenever CompleteCommand fires.
func (f *FSM) OnCommand(fn func(cmd kernel.Command, port int, err error)) {
	f.mu.Lock()
	f.onCommand = fn
	f.mu.Unlock()
}

// Substate reports the current substate; the kernel calls this to decide
// when a handler's work is done (§4.2, §4.9).
func (f *FSM) Substate() kernel.Substate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.substate
}

// SetSubstate forces the substate, used by tests to set up a starting
// condition the matrix in state.go branches on.
func (f *FSM) SetSubstate(s kernel.Substate) {
	f.mu.Lock()
	f.substate = s
	f.mu.Unlock()
}

// BeginTransition moves the substate into the transient "ToX" form when a
// state-set handler's action did not complete synchronously (§4.2, §4.9).
func (f *FSM) BeginTransition(target kernel.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case target == kernel.StateIdle && f.substate == kernel.SubstateLoaded:
		f.substate = kernel.SubstateLoadedToIdle
	case target == kernel.StateIdle && f.substate == kernel.SubstateExecuting:
		f.substate = kernel.SubstateExecutingToIdle
	case target == kernel.StateIdle && f.substate == kernel.SubstatePause:
		f.substate = kernel.SubstatePauseToIdle
	case target == kernel.StateLoaded && f.substate == kernel.SubstateIdle:
		f.substate = kernel.SubstateIdleToLoaded
	}
}

// CompleteTransition advances the substate once the kernel reports a
// top-level transition as done (§4.2).
func (f *FSM) CompleteTransition(target kernel.State, err error) {
	f.mu.Lock()
	if err == nil {
		f.substate = targetSubstate(target)
	}
	hook := f.onTransition
	f.mu.Unlock()
	if hook != nil {
		hook(target, err)
	}
}

// CompleteCommand is called once a multi-port PortDisable/PortEnable has
// fully completed (§4.3) or (per the documented Open Question) never for
// MarkBuffer.
func (f *FSM) CompleteCommand(cmd kernel.Command, port int, err error) {
	f.mu.Lock()
	hook := f.onCommand
	f.mu.Unlock()
	if hook != nil {
		hook(cmd, port, err)
	}
}

func targetSubstate(s kernel.State) kernel.Substate {
	switch s {
	case kernel.StateLoaded:
		return kernel.SubstateLoaded
	case kernel.StateIdle:
		return kernel.SubstateIdle
	case kernel.StateExecuting:
		return kernel.SubstateExecuting
	case kernel.StatePause:
		return kernel.SubstatePause
	case kernel.StateWaitForResources:
		return kernel.SubstateWaitForResources
	default:
		return kernel.SubstateLoaded
	}
}
