// Package memport implements kernel.Port entirely in memory: a reference
// port suitable for tests and for the demo daemon's synthetic components.
// It allocates buffer headers directly (no underlying device or codec),
// matching the kernel's "never allocates headers itself" contract.
package memport

import (
	"sync"

	"github.com/tizedge/omxkernel/internal/kernel"
)

// Param is the (index -> value) pair a Port stores for Get/SetParameter and
// Get/SetConfig. Tests and the demo daemon register whatever indices they
// care about; memport imposes no schema.
type Param struct {
	mu   sync.Mutex
	vals map[uint32]any
}

func newParam() *Param { return &Param{vals: make(map[uint32]any)} }

// Port is a reference, in-memory implementation of kernel.Port.
type Port struct {
	mu sync.Mutex

	dir        kernel.Direction
	domain     kernel.Domain
	index      int
	isConfig   bool
	bufferCount int

	enabled         bool
	populated       bool
	tunneled        bool
	supplier        bool
	allocator       bool
	flushInProgress bool
	goingToDisabled bool
	goingToEnabled  bool
	beingFlushed    bool
	beingDisabled   bool
	beingEnabled    bool

	claimedCount int

	headers []*kernel.BufferHeader
	marks   []kernel.Mark

	indices map[uint32]bool
	params  *Param
	configs *Param

	master masterSlaveLink
}

// masterSlaveLink captures an optional master/slave pairing.
type masterSlaveLink struct {
	peer     *Port
	isMaster bool
}

// New creates a port with the given direction/domain/index, initially
// enabled and not populated.
func New(dir kernel.Direction, domain kernel.Domain, index int) *Port {
	return &Port{
		dir:     dir,
		domain:  domain,
		index:   index,
		enabled: true,
		indices: make(map[uint32]bool),
		params:  newParam(),
		configs: newParam(),
	}
}

// NewConfigPort creates the exclusive configuration port.
func NewConfigPort() *Port {
	p := New(kernel.DirInput, kernel.DomainOther, kernel.ConfigPortIndex)
	p.isConfig = true
	return p
}

// DeclareIndex registers index as one this port manages (§4.7 find_index).
func (p *Port) DeclareIndex(index uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indices[index] = true
}

// SetMasterSlave pairs p with peer; isMaster reports whether p is the
// master half of the pair (§4.7 apply_slaving_behaviour).
func (p *Port) SetMasterSlave(peer *Port, isMaster bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.master = masterSlaveLink{peer: peer, isMaster: isMaster}
}

func (p *Port) Direction() kernel.Direction { return p.dir }
func (p *Port) DomainKind() kernel.Domain   { return p.domain }
func (p *Port) Index() int                  { return p.index }
func (p *Port) IsConfigPort() bool          { return p.isConfig }

func (p *Port) BufferCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.headers)
}

func (p *Port) Enabled() bool { p.mu.Lock(); defer p.mu.Unlock(); return p.enabled }
func (p *Port) SetEnabled(v bool) { p.mu.Lock(); p.enabled = v; p.mu.Unlock() }

func (p *Port) Populated() bool { p.mu.Lock(); defer p.mu.Unlock(); return p.populated }

func (p *Port) Tunneled() bool { p.mu.Lock(); defer p.mu.Unlock(); return p.tunneled }
func (p *Port) Supplier() bool { p.mu.Lock(); defer p.mu.Unlock(); return p.supplier }
func (p *Port) Allocator() bool { p.mu.Lock(); defer p.mu.Unlock(); return p.allocator }

// SetAllocator marks this port as the buffer allocator side, used by tests
// and the demo daemon when wiring a port up before registration.
func (p *Port) SetAllocator(v bool) { p.mu.Lock(); p.allocator = v; p.mu.Unlock() }

func (p *Port) FlushInProgress() bool     { p.mu.Lock(); defer p.mu.Unlock(); return p.flushInProgress }
func (p *Port) SetFlushInProgress(v bool) { p.mu.Lock(); p.flushInProgress = v; p.mu.Unlock() }

func (p *Port) GoingToDisabled() bool     { p.mu.Lock(); defer p.mu.Unlock(); return p.goingToDisabled }
func (p *Port) SetGoingToDisabled(v bool) { p.mu.Lock(); p.goingToDisabled = v; p.mu.Unlock() }

func (p *Port) GoingToEnabled() bool     { p.mu.Lock(); defer p.mu.Unlock(); return p.goingToEnabled }
func (p *Port) SetGoingToEnabled(v bool) { p.mu.Lock(); p.goingToEnabled = v; p.mu.Unlock() }

func (p *Port) BeingFlushed() bool     { p.mu.Lock(); defer p.mu.Unlock(); return p.beingFlushed }
func (p *Port) SetBeingFlushed(v bool) { p.mu.Lock(); p.beingFlushed = v; p.mu.Unlock() }

func (p *Port) BeingDisabled() bool     { p.mu.Lock(); defer p.mu.Unlock(); return p.beingDisabled }
func (p *Port) SetBeingDisabled(v bool) { p.mu.Lock(); p.beingDisabled = v; p.mu.Unlock() }

func (p *Port) BeingEnabled() bool     { p.mu.Lock(); defer p.mu.Unlock(); return p.beingEnabled }
func (p *Port) SetBeingEnabled(v bool) { p.mu.Lock(); p.beingEnabled = v; p.mu.Unlock() }

func (p *Port) ClaimedCount() int { p.mu.Lock(); defer p.mu.Unlock(); return p.claimedCount }
func (p *Port) IncClaimedCount()  { p.mu.Lock(); p.claimedCount++; p.mu.Unlock() }
func (p *Port) DecClaimedCount() {
	p.mu.Lock()
	if p.claimedCount > 0 {
		p.claimedCount--
	}
	p.mu.Unlock()
}

// SetBufferCount declares how many headers Populate will allocate. Must be
// called before the port is populated.
func (p *Port) SetBufferCount(n int) {
	p.mu.Lock()
	p.bufferCount = n
	p.mu.Unlock()
}

func (p *Port) Populate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.populated {
		return nil
	}
	p.headers = make([]*kernel.BufferHeader, 0, p.bufferCount)
	for i := 0; i < p.bufferCount; i++ {
		p.headers = append(p.headers, &kernel.BufferHeader{})
	}
	p.populated = true
	return nil
}

func (p *Port) Depopulate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.headers = nil
	p.bufferCount = 0
	p.populated = false
	return nil
}

func (p *Port) UseBuffer(data []byte) (*kernel.BufferHeader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := &kernel.BufferHeader{Buffer: data}
	p.headers = append(p.headers, h)
	p.bufferCount++
	return h, nil
}

func (p *Port) AllocateBuffer(size int) (*kernel.BufferHeader, error) {
	return p.UseBuffer(make([]byte, size))
}

func (p *Port) FreeBuffer(hdr *kernel.BufferHeader) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, h := range p.headers {
		if h == hdr {
			p.headers = append(p.headers[:i], p.headers[i+1:]...)
			if p.bufferCount > 0 {
				p.bufferCount--
			}
			return nil
		}
	}
	return nil
}

func (p *Port) PopulateHeader(hdr *kernel.BufferHeader) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if hdr.Buffer == nil {
		hdr.Buffer = make([]byte, 0)
	}
	return nil
}

func (p *Port) StoreMark(m kernel.Mark) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marks = append(p.marks, m)
	return nil
}

func (p *Port) MarkBuffer(hdr *kernel.BufferHeader) kernel.MarkStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.marks) == 0 {
		return kernel.MarkNoMore
	}
	m := p.marks[0]
	p.marks = p.marks[1:]
	hdr.MarkTargetComponent = m.TargetComponent
	hdr.MarkData = m.Data
	return kernel.MarkOwned
}

func (p *Port) FlushMarks() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	errs := make([]error, len(p.marks))
	for i := range errs {
		errs[i] = &kernel.KernelError{Code: kernel.ErrPortUnpopulated, Op: "FlushMarks"}
	}
	p.marks = nil
	return errs
}

func (p *Port) FindIndex(index uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indices[index]
}

func (p *Port) GetParameter(index uint32, structPtr any) error {
	return p.params.get(index, structPtr)
}
func (p *Port) SetParameter(index uint32, structPtr any) error {
	return p.params.set(index, structPtr)
}
func (p *Port) GetConfig(index uint32, structPtr any) error {
	return p.configs.get(index, structPtr)
}
func (p *Port) SetConfig(index uint32, structPtr any) error {
	return p.configs.set(index, structPtr)
}

func (pr *Param) get(index uint32, structPtr any) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	v, ok := pr.vals[index]
	if !ok {
		return nil
	}
	switch dst := structPtr.(type) {
	case *any:
		*dst = v
	}
	return nil
}

func (pr *Param) set(index uint32, structPtr any) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.vals[index] = structPtr
	return nil
}

func (p *Port) MasterOrSlave() (kernel.Port, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.master.peer == nil {
		return nil, false
	}
	return p.master.peer, p.master.isMaster
}

func (p *Port) ApplySlavingBehaviour(slave kernel.Port, index uint32, data any) ([]uint32, error) {
	return nil, nil
}

func (p *Port) SetupTunnel(tunneled bool, supplier bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tunneled = tunneled
	p.supplier = supplier
	return nil
}
