package kernel

// Run drives the dispatcher loop: pop one message, dispatch it to the
// handler selected by its tag, repeat until Close is called (§4.1). Run is
// meant to be the body of the single goroutine that owns kernel state
// mutation; callers typically do `go kernel.Run()` once per component
// instance.
func (k *Kernel) Run() {
	for {
		m, ok := k.q.pop()
		if !ok {
			return
		}
		k.dispatch(m)
	}
}

func (k *Kernel) dispatch(m *message) {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch m.tag {
	case tagSendCommand:
		k.handleSendCommand(m.sendCommand)
	case tagEmptyThisBuffer:
		k.handleBuffer(DirInput, m.buffer)
	case tagFillThisBuffer:
		k.handleBuffer(DirOutput, m.buffer)
	case tagCallback:
		k.handleCallback(m.callback)
	case tagPluggableEvent:
		if m.pluggableEvent.handle != nil {
			m.pluggableEvent.handle()
		}
	}
}

func (k *Kernel) handleSendCommand(msg sendCommandMsg) {
	switch msg.cmd {
	case CmdStateSet:
		k.handleStateSet(State(msg.param1))
	case CmdFlush:
		k.handleFlush(msg.param1)
	case CmdPortDisable:
		k.handlePortDisable(msg.param1)
	case CmdPortEnable:
		k.handlePortEnable(msg.param1)
	case CmdMarkBuffer:
		k.handleMarkBuffer(msg.param1, msg.cmdData)
	}
}
