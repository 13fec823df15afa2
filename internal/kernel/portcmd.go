package kernel

// handlePortDisable implements §4.3 port-disable.
func (k *Kernel) handlePortDisable(pid int) {
	targets, err := k.forEachTarget(pid)
	if err != nil {
		k.emitEvent(func(s EventSink) { s.Error(err) })
		return
	}
	k.cmdCompletionCount = len(targets)
	for _, p := range targets {
		k.disableOnePort(p)
	}
}

func (k *Kernel) disableOnePort(p Port) {
	if !p.Enabled() {
		k.completePortDisable(p, nil)
		return
	}

	if p.Tunneled() && p.Supplier() {
		k.moveToIngress(p.Index())
		if len(k.ingress[p.Index()]) != p.BufferCount() {
			p.SetGoingToDisabled(true)
			return
		}
		p.Depopulate()
		k.scrubStaleReferences(p)
		k.completePortDisable(p, nil)
		return
	}

	if p.BufferCount() > 0 {
		p.SetGoingToDisabled(true)
		k.clearIngressMetadata(p.Index())
		k.moveToEgress(p.Index())
		k.flushEgress(p.Index(), false)

		if p.ClaimedCount() > 0 {
			k.processor.SendCommand(CmdPortDisable, p.Index(), nil)
			return
		}
		p.Depopulate()
		k.scrubStaleReferences(p)
		k.completePortDisable(p, nil)
		return
	}

	k.completePortDisable(p, nil)
}

// handlePortEnable implements §4.3 port-enable.
func (k *Kernel) handlePortEnable(pid int) {
	targets, err := k.forEachTarget(pid)
	if err != nil {
		k.emitEvent(func(s EventSink) { s.Error(err) })
		return
	}
	k.cmdCompletionCount = len(targets)
	for _, p := range targets {
		k.enableOnePort(p)
	}
}

func (k *Kernel) enableOnePort(p Port) {
	s := substateToState(k.fsm.Substate())
	if s == StateWaitForResources || s == StateLoaded {
		p.SetEnabled(true)
		k.completePortEnable(p, nil)
		return
	}

	p.SetGoingToEnabled(true)
	if err := p.Populate(); err != nil {
		k.completePortEnable(p, err)
		return
	}

	switch {
	case k.fsm.Substate() == SubstateLoadedToIdle && k.allPopulated():
		p.SetEnabled(true)
		p.SetGoingToEnabled(false)
		k.completePortEnable(p, nil)
		k.fsm.CompleteTransition(StateIdle, nil)
	case s == StateExecuting:
		p.SetEnabled(true)
		p.SetGoingToEnabled(false)
		err := k.transferAndProcess(p.Index())
		k.processor.TransferAndProcess(p.Index())
		k.completePortEnable(p, err)
	default:
		p.SetEnabled(true)
		p.SetGoingToEnabled(false)
		k.completePortEnable(p, nil)
	}
}

// completePortDisable implements the disable half of complete_port_disable
// (§4.3): sets the disabled flag, flushes pending marks, decrements the
// multi-port completion counter, and issues the per-port event.
func (k *Kernel) completePortDisable(p Port, err error) {
	p.SetEnabled(false)
	p.SetGoingToDisabled(false)
	p.SetBeingDisabled(false)
	p.SetBeingFlushed(false)
	p.SetFlushInProgress(false)
	k.flushMarksForPort(p)
	k.completeOnePortCommand(CmdPortDisable, p.Index(), err)
}

// completePortEnable implements complete_port_enable (§4.3).
func (k *Kernel) completePortEnable(p Port, err error) {
	p.SetGoingToEnabled(false)
	p.SetBeingEnabled(false)
	k.completeOnePortCommand(CmdPortEnable, p.Index(), err)
}

// completeOnePortCommand issues the per-port CommandComplete event and,
// once every port targeted by the current multi-port command has reported
// in, notifies the FSM (complete_ongoing_transitions, §4.3). It is called
// both synchronously (from handlePortDisable/Enable's loop) and later
// asynchronously from the Callback path once a port's claimed buffers have
// all been returned.
func (k *Kernel) completeOnePortCommand(cmd Command, pid int, err error) {
	k.emitEvent(func(s EventSink) { s.CommandComplete(cmd, pid, err) })
	if k.cmdCompletionCount > 0 {
		k.cmdCompletionCount--
	}
	if k.cmdCompletionCount == 0 {
		k.fsm.CompleteCommand(cmd, AllPorts, nil)
	}
}
