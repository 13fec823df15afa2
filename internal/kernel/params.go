package kernel

// findManagingPort searches the config port first, then the data ports in
// registration order, for one whose declared index set contains index
// (§4.7, §6 find_managing_port).
func (k *Kernel) findManagingPort(index uint32) Port {
	if k.configPort != nil && k.configPort.FindIndex(index) {
		return k.configPort
	}
	for _, p := range k.ports {
		if p.FindIndex(index) {
			return p
		}
	}
	return nil
}

// GetParameter implements §4.7/§6: synchronous, does not go through the
// queue.
func (k *Kernel) GetParameter(index uint32, structPtr any) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	p := k.findManagingPort(index)
	if p == nil {
		return kerr("GetParameter", ErrUnsupportedIndex)
	}
	return p.GetParameter(index, structPtr)
}

// SetParameter implements §4.7/§6, including the master-slave propagation
// and OMX_EventPortSettingsChanged emission on success.
func (k *Kernel) SetParameter(index uint32, structPtr any) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	p := k.findManagingPort(index)
	if p == nil {
		return kerr("SetParameter", ErrUnsupportedIndex)
	}
	if err := p.SetParameter(index, structPtr); err != nil {
		return err
	}

	if slave, isMaster := p.MasterOrSlave(); slave != nil {
		var changed []uint32
		var err error
		if isMaster {
			changed, err = p.ApplySlavingBehaviour(slave, index, structPtr)
		} else {
			changed, err = slave.ApplySlavingBehaviour(p, index, structPtr)
		}
		if err != nil {
			k.emitEvent(func(s EventSink) { s.Error(err) })
		}
		for _, sub := range changed {
			k.emitEvent(func(s EventSink) { s.PortSettingsChanged(p.Index(), sub) })
		}
	}
	return nil
}

// GetConfig implements §4.7/§6.
func (k *Kernel) GetConfig(index uint32, structPtr any) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	p := k.findManagingPort(index)
	if p == nil {
		return kerr("GetConfig", ErrUnsupportedIndex)
	}
	return p.GetConfig(index, structPtr)
}

// SetConfig implements §4.7/§6.
func (k *Kernel) SetConfig(index uint32, structPtr any) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	p := k.findManagingPort(index)
	if p == nil {
		return kerr("SetConfig", ErrUnsupportedIndex)
	}
	return p.SetConfig(index, structPtr)
}

// PortParam is the {start_index, count} pair reported by the four domain
// queries (§4.7, §3 domain_aggregates).
type PortParam struct {
	StartIndex int
	Count      int
}

// AudioInit, VideoInit, ImageInit and OtherInit serve the four PortParam
// queries from domain_aggregates (§4.7, tizkernel.c get_parameter
// dispatch on those four indices).
func (k *Kernel) AudioInit() PortParam { return k.domainInit(DomainAudio) }
func (k *Kernel) VideoInit() PortParam { return k.domainInit(DomainVideo) }
func (k *Kernel) ImageInit() PortParam { return k.domainInit(DomainImage) }
func (k *Kernel) OtherInit() PortParam { return k.domainInit(DomainOther) }

func (k *Kernel) domainInit(d Domain) PortParam {
	k.mu.Lock()
	defer k.mu.Unlock()
	agg := k.domainAggregates[int(d)]
	return PortParam{StartIndex: agg.StartIndex, Count: agg.Count}
}
