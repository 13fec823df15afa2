package kernel

// FindManagingPort exposes findManagingPort to callers outside the package
// (§6 find_managing_port). In the real binding the index is extracted from
// the structure at offset sizeof(U32)+sizeof(VERSIONTYPE); callers here
// pass it explicitly since Go has no generic struct-header convention.
func (k *Kernel) FindManagingPort(index uint32) Port {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.findManagingPort(index)
}

// Select implements §6 select(nports, bitset): for each of the first
// nports ports whose ingress list is non-empty, sets the corresponding
// bit.
func (k *Kernel) Select(nports int) ([]bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if nports < 0 || nports > len(k.ports) {
		return nil, kerr("Select", ErrBadPortIndex)
	}
	bits := make([]bool, nports)
	for i := 0; i < nports; i++ {
		bits[i] = len(k.ingress[k.ports[i].Index()]) > 0
	}
	return bits, nil
}

// ClaimBuffer implements §6 claim_buffer: removes ingress[pid][pos],
// increments claimed_count, applies output-allocator late-populate, and
// applies input-side mark stamping.
func (k *Kernel) ClaimBuffer(pid, pos int) (*BufferHeader, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if substateToState(k.fsm.Substate()) == StatePause {
		return nil, kerr("ClaimBuffer", ErrNotImplemented)
	}
	if err := k.checkPortIndex(pid); err != nil {
		return nil, err
	}
	p := k.portLocked(pid)
	if !p.Enabled() {
		return nil, kerr("ClaimBuffer", ErrBadPortIndex)
	}

	list := k.ingress[pid]
	if pos < 0 || pos >= len(list) {
		return nil, kerr("ClaimBuffer", ErrBadPortIndex)
	}
	hdr := list[pos]
	k.ingress[pid] = append(list[:pos], list[pos+1:]...)
	p.IncClaimedCount()

	if p.Direction() == DirOutput && p.Allocator() {
		p.PopulateHeader(hdr)
	}
	if p.Direction() == DirInput {
		p.MarkBuffer(hdr)
	}
	return hdr, nil
}

// RelinquishBuffer implements §6 relinquish_buffer: enqueues a Callback.
func (k *Kernel) RelinquishBuffer(pid int, hdr *BufferHeader) {
	k.Callback(pid, DirMax, hdr)
}

// UseBuffer, AllocateBuffer and FreeBuffer delegate to the managing port's
// buffer-header lifecycle operations (§3 Lifecycle, §6).
func (k *Kernel) UseBuffer(pid int, data []byte) (*BufferHeader, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.checkPortIndex(pid); err != nil {
		return nil, err
	}
	return k.portLocked(pid).UseBuffer(data)
}

func (k *Kernel) AllocateBuffer(pid int, size int) (*BufferHeader, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.checkPortIndex(pid); err != nil {
		return nil, err
	}
	return k.portLocked(pid).AllocateBuffer(size)
}

func (k *Kernel) FreeBuffer(pid int, hdr *BufferHeader) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.checkPortIndex(pid); err != nil {
		return err
	}
	p := k.portLocked(pid)
	if p.Enabled() && p.Populated() && substateToState(k.fsm.Substate()) != StateIdle {
		err := p.FreeBuffer(hdr)
		k.emitEvent(func(s EventSink) { s.Error(kerr("FreeBuffer", ErrPortUnpopulated)) })
		return err
	}
	return p.FreeBuffer(hdr)
}

// GetExtensionIndex implements §6; this kernel declares no vendor
// extensions.
func (k *Kernel) GetExtensionIndex(name string) (uint32, error) {
	return 0, kerr("GetExtensionIndex", ErrNotImplemented)
}
