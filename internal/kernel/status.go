package kernel

// substateToState maps the FSM's fine-grained substate onto the coarse
// top-level state the state-set matrix is keyed on (§4.2, §4.9).
func substateToState(s Substate) State {
	switch s {
	case SubstateLoaded, SubstateLoadedToIdle, SubstateIdleToLoaded:
		return StateLoaded
	case SubstateIdle, SubstateExecutingToIdle, SubstatePauseToIdle:
		return StateIdle
	case SubstateExecuting:
		return StateExecuting
	case SubstatePause:
		return StatePause
	case SubstateWaitForResources:
		return StateWaitForResources
	default:
		return StateLoaded
	}
}

// allPopulated reports whether every enabled port is populated (§4.2
// Loaded->Idle done condition, invariant 4).
func (k *Kernel) allPopulated() bool {
	if k.configPort != nil && k.configPort.Enabled() && !k.configPort.Populated() {
		return false
	}
	for _, p := range k.ports {
		if p.Enabled() && !p.Populated() {
			return false
		}
	}
	return true
}

// allDepopulated reports whether every port has buffer_count == 0 (§4.2
// Idle->Loaded done condition, invariant 5).
func (k *Kernel) allDepopulated() bool {
	if k.configPort != nil && k.configPort.BufferCount() != 0 {
		return false
	}
	for _, p := range k.ports {
		if p.BufferCount() != 0 {
			return false
		}
	}
	return true
}

// allBuffersReturned implements invariant 6: for every enabled port,
// either it is a tunnelled supplier with its full buffer count sitting in
// ingress, or its claimed_count has dropped to zero.
func (k *Kernel) allBuffersReturned() bool {
	for _, p := range k.ports {
		if !p.Enabled() {
			continue
		}
		if p.Tunneled() && p.Supplier() {
			if len(k.ingress[p.Index()]) != p.BufferCount() {
				return false
			}
			continue
		}
		if p.ClaimedCount() != 0 {
			return false
		}
	}
	return true
}

// mayBeFullyUnpopulated is the get_population_status out-flag: false iff at
// least one non-supplier tunnelled port is still holding buffers (§6).
func (k *Kernel) mayBeFullyUnpopulated() bool {
	for _, p := range k.ports {
		if p.Tunneled() && !p.Supplier() && p.BufferCount() > 0 {
			return false
		}
	}
	return true
}

// GetPopulationStatus reports the aggregate population state of pid, or of
// every data port when pid == AllPorts (§6).
func (k *Kernel) GetPopulationStatus(pid int) (PopulationStatus, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	targets, err := k.forEachTarget(pid)
	if err != nil {
		return PopulationUnknown, k.mayBeFullyUnpopulated()
	}

	allPop, allUnpop := true, true
	for _, p := range targets {
		if p.BufferCount() == 0 {
			allPop = false
		} else {
			allUnpop = false
		}
	}
	switch {
	case allPop:
		return FullyPopulated, k.mayBeFullyUnpopulated()
	case allUnpop:
		return FullyUnpopulated, k.mayBeFullyUnpopulated()
	default:
		return Unpopulated, k.mayBeFullyUnpopulated()
	}
}
