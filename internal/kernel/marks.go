package kernel

// handleMarkBuffer implements dispatch_mark_buffer (§4.5): stores the mark
// on the target port and records that one MarkBuffer command is pending
// consumption on that port.
func (k *Kernel) handleMarkBuffer(pid int, cmdData any) {
	mark, ok := cmdData.(Mark)
	if !ok {
		k.emitEvent(func(s EventSink) { s.Error(k.logicErr("MarkBuffer", ErrUndefined)) })
		return
	}
	if err := k.checkPortIndex(pid); err != nil {
		k.emitEvent(func(s EventSink) { s.Error(err) })
		return
	}
	p := k.portLocked(pid)
	if err := p.StoreMark(mark); err != nil {
		k.emitEvent(func(s EventSink) { s.Error(err) })
		return
	}
	k.markPending[pid]++
}

// processMarks implements the §4.5 egress mark-propagation algorithm for
// one outgoing header on port p.
func (k *Kernel) processMarks(p Port, hdr *BufferHeader) {
	switch {
	case hdr.HasMark() && hdr.MarkTargetComponent == k.componentName:
		data := hdr.MarkData
		hdr.clearMark()
		k.emitEvent(func(s EventSink) { s.Mark(data) })

	case hdr.HasMark() && p.Direction() == DirInput:
		mark := Mark{TargetComponent: hdr.MarkTargetComponent, Data: hdr.MarkData}
		for _, out := range k.ports {
			if out.Direction() != DirOutput {
				continue
			}
			out.StoreMark(mark)
		}
		hdr.clearMark()

	case !hdr.HasMark() && p.Direction() == DirOutput:
		status := p.MarkBuffer(hdr)
		if status == MarkOwned {
			k.completeMarkBuffer(p.Index())
		}
	}
}

// completeMarkBuffer implements complete_mark_buffer. Per the observed
// source behaviour (the completion counter decrement is dead code there),
// it emits CommandComplete but never notifies the FSM.
func (k *Kernel) completeMarkBuffer(pid int) {
	if k.markPending[pid] > 0 {
		k.markPending[pid]--
	}
	k.emitEvent(func(s EventSink) { s.CommandComplete(CmdMarkBuffer, pid, nil) })
}

// flushMarksForPort drains a port's mark queue on disable, completing each owned,
// still-queued mark with PortUnpopulated (§4.4 complete_port_disable,
// §4.5 flush_marks). The port itself performs the iteration via its
// FlushMarks capability; this wraps it with the kernel-level completion.
func (k *Kernel) flushMarksForPort(p Port) {
	for range p.FlushMarks() {
		k.completeMarkBufferWithError(p.Index(), k.logicErr("flush_marks", ErrPortUnpopulated))
	}
}

func (k *Kernel) completeMarkBufferWithError(pid int, err error) {
	if k.markPending[pid] > 0 {
		k.markPending[pid]--
	}
	k.emitEvent(func(s EventSink) { s.CommandComplete(CmdMarkBuffer, pid, err) })
}
