package kernel

import "container/heap"

// moveToIngress atomically appends egress[pid] onto ingress[pid] and clears
// egress[pid] (§4.6 move_to_ingress).
func (k *Kernel) moveToIngress(pid int) {
	k.ingress[pid] = append(k.ingress[pid], k.egress[pid]...)
	k.egress[pid] = nil
}

// moveToEgress atomically appends ingress[pid] onto egress[pid] and clears
// ingress[pid] (§4.6 move_to_egress).
func (k *Kernel) moveToEgress(pid int) {
	k.egress[pid] = append(k.egress[pid], k.ingress[pid]...)
	k.ingress[pid] = nil
}

// clearIngressMetadata zeroes the payload metadata of every header
// currently in ingress[pid] without removing them from the list, used by
// the non-tunnelled port-disable path before moving them to egress (§4.3).
func (k *Kernel) clearIngressMetadata(pid int) {
	for _, h := range k.ingress[pid] {
		h.FilledLen = 0
		h.Offset = 0
		h.Flags = 0
	}
}

// scrubStaleReferences removes any reference to a depopulated port's
// former headers from the kernel's own queue and asks the processor to do
// the same (§4.3, §4.6). Only buffer and Callback messages can reference a
// header; SendCommand and PluggableEvent messages never do.
func (k *Kernel) scrubStaleReferences(p Port) {
	pid := p.Index()
	k.q.mu.Lock()
	kept := k.q.heap[:0]
	for _, m := range k.q.heap {
		switch m.tag {
		case tagEmptyThisBuffer, tagFillThisBuffer:
			if m.buffer.pid == pid {
				continue
			}
		case tagCallback:
			if m.callback.pid == pid && m.callback.hdr != nil {
				continue
			}
		}
		kept = append(kept, m)
	}
	k.q.heap = kept
	heap.Init(&k.q.heap)
	k.q.mu.Unlock()

	k.processor.SendCommand(CmdFlush, pid, nil)
}

// handleBuffer implements §4.6 EmptyThisBuffer/FillThisBuffer.
func (k *Kernel) handleBuffer(dir Direction, msg bufferMsg) {
	pid := msg.pid
	hdr := msg.hdr

	if err := k.checkPortIndex(pid); err != nil {
		k.emitEvent(func(s EventSink) { s.Error(err) })
		return
	}
	p := k.portLocked(pid)
	if dir == DirInput {
		hdr.InputPortIndex = pid
	} else {
		hdr.OutputPortIndex = pid
	}
	k.ingress[pid] = append(k.ingress[pid], hdr)

	if p.Tunneled() && p.Supplier() && p.GoingToDisabled() && len(k.ingress[pid]) == p.BufferCount() {
		p.Depopulate()
		k.scrubStaleReferences(p)
		k.completePortDisable(p, nil)
		return
	}

	sub := k.fsm.Substate()
	if (sub == SubstateExecutingToIdle || sub == SubstatePauseToIdle) && k.allBuffersReturned() {
		k.fsm.CompleteTransition(StateIdle, nil)
		return
	}

	if substateToState(sub) != StatePause && p.Enabled() {
		k.forwardToProcessor(p, pid, hdr, dir)
	}
}

// forwardToProcessor removes hdr from ingress[pid], hands it to the
// processor, and increments claimed_count — the immediate-forward half of
// the ingress->processor handoff (§4.6).
func (k *Kernel) forwardToProcessor(p Port, pid int, hdr *BufferHeader, dir Direction) {
	k.removeFromIngress(pid, hdr)
	p.IncClaimedCount()
	if dir == DirInput {
		k.processor.EmptyThisBuffer(pid, hdr)
	} else {
		k.processor.FillThisBuffer(pid, hdr)
	}
}

func (k *Kernel) removeFromIngress(pid int, hdr *BufferHeader) {
	list := k.ingress[pid]
	for i, h := range list {
		if h == hdr {
			k.ingress[pid] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// propagateIngress forwards every header still queued in ingress[pid] to
// the processor — the deferred counterpart of the immediate forward in
// handleBuffer, run when a port resumes from Pause or is re-enabled
// (§4.6).
func (k *Kernel) propagateIngress(pid int) {
	p := k.portLocked(pid)
	if p == nil {
		return
	}
	for _, hdr := range append([]*BufferHeader(nil), k.ingress[pid]...) {
		k.forwardToProcessor(p, pid, hdr, p.Direction())
	}
}

// handleCallback implements the processor-relinquish path of §4.6.
func (k *Kernel) handleCallback(msg callbackMsg) {
	if substateToState(k.fsm.Substate()) == StatePause {
		p := k.portLocked(msg.pid)
		if p == nil || !p.BeingFlushed() {
			k.q.enqueueDummyCallback()
			return
		}
	}

	if msg.hdr == nil && msg.dir == DirMax {
		k.flushEgress(AllPorts, false)
		return
	}

	p := k.portLocked(msg.pid)
	if p == nil {
		return
	}
	// A header returned while its port is being flushed follows the §4.4
	// matrix's "zero nFilledLen" column, as flushOnePort applies it to
	// headers the kernel held.
	if p.BeingFlushed() && (p.Direction() == DirOutput || (p.Tunneled() && p.Supplier())) {
		msg.hdr.FilledLen = 0
	}
	k.egress[msg.pid] = append(k.egress[msg.pid], msg.hdr)
	p.DecClaimedCount()
	k.flushEgress(AllPorts, false)

	if p.ClaimedCount() != 0 {
		return
	}
	if p.BeingFlushed() {
		k.completeFlush(p)
	}
	if p.GoingToDisabled() {
		p.Depopulate()
		k.scrubStaleReferences(p)
		k.completePortDisable(p, nil)
	}
	sub := k.fsm.Substate()
	if (sub == SubstateExecutingToIdle || sub == SubstatePauseToIdle) && k.allBuffersReturned() {
		k.fsm.CompleteTransition(StateIdle, nil)
	}
}

// flushEgress implements §4.6 flush_egress. pid == AllPorts processes every
// port's egress list; clear requests the transfer_and_process variant that
// zeroes and retains each header instead of delivering it.
func (k *Kernel) flushEgress(pid int, clear bool) {
	targets := k.ports
	if pid != AllPorts {
		if p := k.portLocked(pid); p != nil {
			targets = []Port{p}
		} else {
			targets = nil
		}
	}

	for _, p := range targets {
		idx := p.Index()

		if clear {
			for _, hdr := range k.egress[idx] {
				if p.Tunneled() {
					if peer, ok := k.tunnelPeers[idx]; ok {
						if !peer.Post() {
							k.q.enqueueDummyCallback()
							return
						}
					}
				}
				if p.Direction() == DirInput && p.Allocator() {
					p.PopulateHeader(hdr)
				}
				k.processMarks(p, hdr)
				hdr.FilledLen = 0
				hdr.Offset = 0
				hdr.Flags = 0
			}
			continue
		}

		for len(k.egress[idx]) > 0 {
			hdr := k.egress[idx][0]

			if p.Tunneled() {
				if peer, ok := k.tunnelPeers[idx]; ok {
					if !peer.Post() {
						k.q.enqueueDummyCallback()
						return
					}
				}
			}

			if p.Direction() == DirInput && p.Allocator() {
				p.PopulateHeader(hdr)
			}

			k.processMarks(p, hdr)

			if p.Direction() == DirOutput && hdr.Flags.EOS() && !k.eos {
				k.eos = true
				k.emitEvent(func(s EventSink) { s.BufferFlag(idx, hdr.Flags) })
			}

			k.egress[idx] = k.egress[idx][1:]
			k.deliverOutbound(p, idx, hdr)
		}
	}
}

// stopAndReturn implements kernel_stop_and_return (§4.2 Executing/Pause->
// Idle): every enabled, populated port either has its tunnelled-supplier
// buffers moved back to ingress (so allBuffersReturned can see them) or
// has its queued ingress moved to egress, flushed out, and its pending
// marks flushed.
func (k *Kernel) stopAndReturn() error {
	for _, p := range k.ports {
		if !p.Enabled() || p.BufferCount() == 0 {
			continue
		}
		idx := p.Index()

		if p.Tunneled() && p.Supplier() {
			k.moveToIngress(idx)
			continue
		}

		k.moveToEgress(idx)
		k.flushEgress(idx, false)
		k.flushMarksForPort(p)
	}
	return nil
}

// prepareToTransfer implements kernel_prepare_to_transfer (§4.2 Idle->
// Executing): a tunnelled-supplier input port hands its queued buffers to
// egress ready for delivery to the peer; a tunnelled-supplier output port
// pulls its queued buffers into ingress ready for the processor. pid is
// AllPorts or a single port.
func (k *Kernel) prepareToTransfer(pid int) error {
	targets, err := k.forEachTarget(pid)
	if err != nil {
		return err
	}
	for _, p := range targets {
		if !p.Enabled() || !(p.Tunneled() && p.Supplier()) {
			continue
		}
		idx := p.Index()
		if p.Direction() == DirInput {
			k.moveToEgress(idx)
		} else {
			k.moveToIngress(idx)
		}
	}
	return nil
}

// transferAndProcess implements kernel_transfer_and_process (§4.2
// Executing->Executing, and port-enable while Executing):
// flushes each targeted port's egress with clear semantics and propagates
// its queued ingress onward to the processor. pid is AllPorts or a single
// port.
func (k *Kernel) transferAndProcess(pid int) error {
	targets, err := k.forEachTarget(pid)
	if err != nil {
		return err
	}
	for _, p := range targets {
		idx := p.Index()
		k.flushEgress(idx, true)
		k.propagateIngress(idx)
	}
	return nil
}

// deliverOutbound issues the IL-Client buffer callback or forwards across
// a tunnel, the terminal step of flush_egress (§4.6).
func (k *Kernel) deliverOutbound(p Port, pid int, hdr *BufferHeader) {
	if p.Tunneled() {
		if peer, ok := k.tunnelPeers[pid]; ok {
			peer.Forward(pid, p.Direction(), hdr)
			return
		}
	}
	if p.Direction() == DirInput {
		k.emitEvent(func(s EventSink) { s.EmptyBufferDone(hdr) })
	} else {
		k.emitEvent(func(s EventSink) { s.FillBufferDone(hdr) })
	}
}
