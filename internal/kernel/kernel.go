package kernel

import (
	"fmt"
	"sync"
)

// Kernel is the per-component control core (§3). It owns the configuration
// port and an ordered sequence of data ports, the per-port ingress/egress
// buffer-header lists, and the single priority message queue that
// serialises every externally-initiated command, buffer submission and
// event. A Kernel is created once per component instance and torn down by
// DeregisterAllPorts followed by Close.
type Kernel struct {
	// mu guards every field below. The dispatcher goroutine holds it for
	// the duration of each handler; the synchronous API surface
	// (RegisterPort, ClaimBuffer, GetPopulationStatus, Select, parameter
	// routing) holds it for the duration of the call. This does not
	// contradict the "single-threaded cooperative" design: exactly one
	// logical actor mutates kernel state at a time, the mutex merely
	// arbitrates between the dispatcher goroutine and direct callers of
	// the synchronous surface.
	mu sync.Mutex

	configPort Port
	ports      []Port // index i holds the port registered with Index() == i

	ingress map[int][]*BufferHeader
	egress  map[int][]*BufferHeader

	domainAggregates [numDomains]DomainAggregate

	cmdCompletionCount int
	eos                bool

	// markPending counts SendCommand(MarkBuffer, pid, ...) submissions not
	// yet consumed by process_marks for that port (§4.5).
	markPending map[int]int

	tunnelPeers map[int]TunnelPeer

	processor Processor
	fsm       FSM
	rm        ResourceManager
	sink      EventSink

	q *queue

	stopOnce sync.Once
	stopped  chan struct{}

	componentName string
}

// New creates a Kernel with no ports registered. processor, fsm and sink
// must be non-nil; rm may be nil for components that declare no resources.
// name is this component's own name, used to recognise self-targeted marks
// (§4.5).
func New(name string, processor Processor, fsm FSM, sink EventSink, rm ResourceManager) *Kernel {
	return &Kernel{
		ingress:       make(map[int][]*BufferHeader),
		egress:        make(map[int][]*BufferHeader),
		markPending:   make(map[int]int),
		tunnelPeers:   make(map[int]TunnelPeer),
		processor:     processor,
		fsm:           fsm,
		rm:            rm,
		sink:          sink,
		q:             newQueue(),
		stopped:       make(chan struct{}),
		componentName: name,
	}
}

// checkPortIndex validates pid against the half-open [0, N) data-port range
// or the config-port sentinel (Open Question 3, SPEC_FULL.md).
func (k *Kernel) checkPortIndex(pid int) error {
	if pid == ConfigPortIndex {
		if k.configPort == nil {
			return kerr("checkPortIndex", ErrBadPortIndex)
		}
		return nil
	}
	if pid < 0 || pid >= len(k.ports) {
		return kerr("checkPortIndex", ErrBadPortIndex)
	}
	return nil
}

// RegisterPort takes ownership of port (§3 Lifecycle, §6 register_port).
// isConfig registers it as the exclusive configuration port rather than
// appending it to the data-port sequence.
func (k *Kernel) RegisterPort(port Port, isConfig bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if isConfig {
		k.configPort = port
		return nil
	}

	k.ports = append(k.ports, port)
	agg := &k.domainAggregates[int(port.DomainKind())]
	if agg.Count == 0 {
		agg.StartIndex = port.Index()
	}
	agg.Count++
	return nil
}

// DeregisterAllPorts destroys every registration (§6 deregister_all_ports).
// The kernel holds no further reference to any port or the config port
// after this call returns.
func (k *Kernel) DeregisterAllPorts() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.ports = nil
	k.configPort = nil
	k.ingress = make(map[int][]*BufferHeader)
	k.egress = make(map[int][]*BufferHeader)
	k.markPending = make(map[int]int)
	for i := range k.domainAggregates {
		k.domainAggregates[i] = DomainAggregate{}
	}
}

// GetPort returns the port registered at pid, or nil if none is (§6
// get_port).
func (k *Kernel) GetPort(pid int) Port {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.portLocked(pid)
}

func (k *Kernel) portLocked(pid int) Port {
	if pid == ConfigPortIndex {
		return k.configPort
	}
	if pid < 0 || pid >= len(k.ports) {
		return nil
	}
	return k.ports[pid]
}

// forEachTarget resolves a SendCommand/Flush-style pid — either a single
// port index or AllPorts — to the concrete port slice it addresses.
func (k *Kernel) forEachTarget(pid int) ([]Port, error) {
	if pid == AllPorts {
		return k.ports, nil
	}
	if err := k.checkPortIndex(pid); err != nil {
		return nil, err
	}
	return []Port{k.portLocked(pid)}, nil
}

// SetTunnelPeer records the synchronisation record for the peer tunnelled
// to pid (§5). A nil peer clears a previously tunnelled port's record.
func (k *Kernel) SetTunnelPeer(pid int, peer TunnelPeer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if peer == nil {
		delete(k.tunnelPeers, pid)
		return
	}
	k.tunnelPeers[pid] = peer
}

// SendCommand, EmptyThisBuffer and FillThisBuffer are the submission entry
// points (§5): callable from any goroutine, they only push onto the queue
// and never touch kernel state directly.

func (k *Kernel) SendCommand(cmd Command, pid int, cmdData any) {
	k.q.enqueueSendCommand(cmd, pid, cmdData)
}

func (k *Kernel) EmptyThisBuffer(pid int, hdr *BufferHeader) {
	k.q.enqueueEmptyThisBuffer(pid, hdr)
}

func (k *Kernel) FillThisBuffer(pid int, hdr *BufferHeader) {
	k.q.enqueueFillThisBuffer(pid, hdr)
}

// Callback is called by the processor servant to relinquish a previously
// forwarded header, or by tunnel/internal code with hdr == nil to enqueue a
// dummy drain (§4.1, §4.6).
func (k *Kernel) Callback(pid int, dir Direction, hdr *BufferHeader) {
	k.q.enqueueCallback(pid, dir, hdr)
}

// ReceivePluggableEvent enqueues an opaque event with its own handler,
// used by the RM proxy and any other collaborator that must serialise a
// notification through the kernel's queue (§4.1, §4.8).
func (k *Kernel) ReceivePluggableEvent(handle func()) {
	k.q.enqueuePluggableEvent(handle)
}

// Close stops the dispatcher goroutine started by Run. It is safe to call
// multiple times and safe to call before Run if Run is never going to be
// called.
func (k *Kernel) Close() {
	k.stopOnce.Do(func() {
		k.q.close()
		close(k.stopped)
	})
}

// emitEvent delivers an event to the sink if one is registered; the sink
// may be nil in tests that only assert on port/list state.
func (k *Kernel) emitEvent(f func(EventSink)) {
	if k.sink != nil {
		f(k.sink)
	}
}

func (k *Kernel) logicErr(op string, code ErrorCode) error {
	return fmt.Errorf("kernel: %s", kerr(op, code).Error())
}
