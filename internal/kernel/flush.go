package kernel

// handleFlush implements §4.4 port-flush. pid may be AllPorts.
func (k *Kernel) handleFlush(pid int) {
	targets, err := k.forEachTarget(pid)
	if err != nil {
		k.emitEvent(func(s EventSink) { s.Error(err) })
		return
	}
	for _, p := range targets {
		k.flushOnePort(p)
	}
}

// flushOnePort runs the §4.4 flush matrix for one port. The matrix is
// expressed here as moves between ingress/egress followed by a
// flush_egress(clear=false) pass. flush_egress(clear=false) delivers
// headers without touching their metadata, so the matrix's "zero
// nFilledLen" column is applied explicitly (zeroEgress,
// clearIngressMetadata) before the header is handed back.
func (k *Kernel) flushOnePort(p Port) {
	if p.BufferCount() == 0 || !p.Enabled() {
		return
	}
	st := substateToState(k.fsm.Substate())
	if st != StateExecuting && st != StatePause {
		return
	}

	idx := p.Index()

	switch {
	case !p.Tunneled():
		// Return (Input), or Return + zero nFilledLen (Output).
		k.moveToEgress(idx)
		if p.Direction() == DirOutput {
			k.zeroEgress(idx)
		}

	case p.Tunneled() && p.Supplier() && p.Direction() == DirInput:
		// Return + zero nFilledLen (ingress -> egress -> out).
		k.moveToEgress(idx)
		k.zeroEgress(idx)

	case p.Tunneled() && p.Supplier() && p.Direction() == DirOutput:
		// Hold: egress -> ingress, clear, zero nFilledLen.
		k.moveToIngress(idx)
		k.clearIngressMetadata(idx)

	case p.Tunneled() && !p.Supplier() && p.Direction() == DirInput:
		// Return.
		k.moveToEgress(idx)

	case p.Tunneled() && !p.Supplier() && p.Direction() == DirOutput:
		// Return + zero nFilledLen.
		k.moveToEgress(idx)
		k.zeroEgress(idx)
	}

	if p.ClaimedCount() > 0 {
		p.SetFlushInProgress(true)
		p.SetBeingFlushed(true)
		k.processor.SendCommand(CmdFlush, idx, nil)
		return
	}

	k.flushEgress(idx, false)
	k.completeFlush(p)
}

func (k *Kernel) zeroEgress(pid int) {
	for _, h := range k.egress[pid] {
		h.FilledLen = 0
	}
}

// completeFlush implements the flush completion half referenced from both
// flushOnePort (synchronous, no claimed buffers) and the Callback handler
// (asynchronous, once claimed_count drains to zero, §4.6).
func (k *Kernel) completeFlush(p Port) {
	p.SetFlushInProgress(false)
	p.SetBeingFlushed(false)
	k.emitEvent(func(s EventSink) { s.CommandComplete(CmdFlush, p.Index(), nil) })
}
