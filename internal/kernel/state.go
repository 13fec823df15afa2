package kernel

// handleStateSet implements the §4.2 state-set matrix. It is only ever
// called from the dispatcher goroutine with k.mu held.
func (k *Kernel) handleStateSet(target State) {
	current := substateToState(k.fsm.Substate())

	if current == target {
		k.fsm.CompleteTransition(target, k.logicErr("StateSet", ErrSameState))
		return
	}

	var done bool
	var err error

	switch {
	case current == StateIdle && target == StateLoaded:
		k.deallocateAll()
		if k.rm != nil {
			k.rm.Release()
			k.rm.Deinit()
		}
		done = k.allDepopulated()

	case target == StateWaitForResources:
		done = true

	case current == StateLoaded && target == StateIdle:
		err = k.initAndAcquireRM()
		k.allocateAll()
		done = k.allPopulated()

	case (current == StateExecuting || current == StatePause) && target == StateIdle:
		err = k.stopAndReturn()
		k.processor.StopAndReturn(AllPorts)
		done = k.allBuffersReturned()

	case current == StateIdle && target == StateExecuting:
		err = k.prepareToTransfer(AllPorts)
		k.processor.PrepareToTransfer(AllPorts)
		done = true

	case current == StatePause && target == StateExecuting:
		k.q.enqueueDummyCallback()
		done = true

	case current == StateExecuting && target == StateExecuting:
		err = k.transferAndProcess(AllPorts)
		k.processor.TransferAndProcess(AllPorts)
		done = false

	case target == StatePause:
		done = true

	default:
		err = k.logicErr("StateSet", ErrUnsupportedIndex)
		done = true
	}

	if done {
		k.fsm.CompleteTransition(target, err)
	} else {
		k.fsm.BeginTransition(target)
	}
}

// initAndAcquireRM performs the Loaded->Idle resource-manager handshake
// (§4.2, §4.8), mapping RM outcomes onto the reserved error codes.
func (k *Kernel) initAndAcquireRM() error {
	if k.rm == nil {
		return nil
	}
	name, priority := "", 0
	if k.configPort != nil {
		var cfg struct {
			Name     string
			Priority int
		}
		if k.configPort.GetConfig(0, &cfg) == nil {
			name, priority = cfg.Name, cfg.Priority
		}
	}
	if err := k.rm.Init(name, priority, ResourceManagerCallbacks{
		OnWaitComplete: func(rid string) { k.q.enqueuePluggableEvent(func() { k.handleRMWaitComplete(rid) }) },
		OnPreempt:      func(rid string) { k.q.enqueuePluggableEvent(func() { k.handleRMPreempt(rid) }) },
		OnPreemptEnd:   func(rid string) { k.q.enqueuePluggableEvent(func() { k.handleRMPreemptEnd(rid) }) },
	}); err != nil {
		return k.logicErr("initAndAcquireRM", ErrInsufficientResources)
	}

	outcome, err := k.rm.Acquire()
	switch outcome {
	case RMPreemptionInProgress:
		return k.logicErr("initAndAcquireRM", ErrResourcesPreempted)
	case RMInsufficientResources:
		return k.logicErr("initAndAcquireRM", ErrInsufficientResources)
	default:
		return err
	}
}

// handleRMPreempt runs on the dispatcher goroutine (delivered as a
// pluggable event, §4.8) and only surfaces the notification as an Error
// event; the RM proxy itself owns retry/backoff policy.
func (k *Kernel) handleRMPreempt(rid string) {
	k.emitEvent(func(s EventSink) { s.Error(k.logicErr("rm:preempt:"+rid, ErrResourcesPreempted)) })
}

// handleRMWaitComplete retries the acquisition the RM previously deferred.
func (k *Kernel) handleRMWaitComplete(rid string) {
	if k.rm == nil {
		return
	}
	outcome, err := k.rm.Acquire()
	if outcome == RMGranted {
		k.fsm.CompleteTransition(StateIdle, err)
	}
}

// handleRMPreemptEnd has no observable effect of its own; it exists so the
// RM proxy has somewhere serialised to deliver the notification, matching
// tizkernel.c's preempt-end callback which only logs.
func (k *Kernel) handleRMPreemptEnd(rid string) {}

func (k *Kernel) deallocateAll() {
	if k.configPort != nil {
		k.configPort.Depopulate()
	}
	for _, p := range k.ports {
		p.Depopulate()
	}
}

func (k *Kernel) allocateAll() {
	if k.configPort != nil {
		k.configPort.Populate()
	}
	for _, p := range k.ports {
		p.Populate()
	}
}
