package kernel

// Port is the capability set the kernel queries and drives on an opaque
// port handle (§3). Port objects are created and registered by a factory
// external to the kernel; the kernel treats them as a fixed capability set,
// never a concrete struct — concrete implementations live outside this
// package (see internal/memport for a reference one).
type Port interface {
	// Identity and static capability.
	Direction() Direction
	DomainKind() Domain
	Index() int
	IsConfigPort() bool

	// BufferCount is the number of buffer headers this port was populated
	// with (0 before population / after depopulation).
	BufferCount() int

	// Mutable per-port flags (§3).
	Enabled() bool
	SetEnabled(bool)
	Populated() bool
	Tunneled() bool
	Supplier() bool
	Allocator() bool
	FlushInProgress() bool
	SetFlushInProgress(bool)
	GoingToDisabled() bool
	SetGoingToDisabled(bool)
	GoingToEnabled() bool
	SetGoingToEnabled(bool)
	BeingFlushed() bool
	SetBeingFlushed(bool)
	BeingDisabled() bool
	SetBeingDisabled(bool)
	BeingEnabled() bool
	SetBeingEnabled(bool)

	// ClaimedCount is the number of buffers currently held by the processor.
	ClaimedCount() int
	IncClaimedCount()
	DecClaimedCount()

	// Populate/Depopulate allocate or release the port's buffer_count
	// buffer headers.
	Populate() error
	Depopulate() error

	// UseBuffer/AllocateBuffer/FreeBuffer are the header lifecycle
	// operations (§3 Lifecycle): the kernel never allocates headers itself.
	UseBuffer(data []byte) (*BufferHeader, error)
	AllocateBuffer(size int) (*BufferHeader, error)
	FreeBuffer(hdr *BufferHeader) error

	// PopulateHeader performs the late (allocator, pre-announce-disabled)
	// buffer-pointer population referenced in flush_egress step 2.
	PopulateHeader(hdr *BufferHeader) error

	// Mark ownership protocol (§4.5).
	StoreMark(m Mark) error
	MarkBuffer(hdr *BufferHeader) MarkStatus
	FlushMarks() []error // PortUnpopulated per owned, still-queued mark

	// FindIndex reports whether this port's declared index set contains
	// the given OMX_INDEXTYPE-style parameter/config index (§4.7).
	FindIndex(index uint32) bool

	// GetParameter/SetParameter/GetConfig/SetConfig perform the actual
	// structure copy for an index this port owns (§4.7). structPtr is an
	// opaque, caller-typed structure; the port decides what to do with it.
	GetParameter(index uint32, structPtr any) error
	SetParameter(index uint32, structPtr any) error
	GetConfig(index uint32, structPtr any) error
	SetConfig(index uint32, structPtr any) error

	// MasterOrSlave reports whether this port is one half of a
	// master/slave pair, and if so the paired port.
	MasterOrSlave() (paired Port, isMaster bool)
	// ApplySlavingBehaviour asks the master port (the receiver) to mirror
	// a settings change onto its slave, returning the sub-indices whose
	// settings changed as a result (for OMX_EventPortSettingsChanged).
	ApplySlavingBehaviour(slave Port, index uint32, data any) ([]uint32, error)

	// SetupTunnel configures this port for a tunnel with a neighbouring
	// component, recording whether this side supplies the buffers.
	SetupTunnel(tunneled bool, supplier bool) error
}

// Processor is the media-processing leaf servant. The kernel forwards
// buffers and per-port lifecycle actions to it and never calls into it
// synchronously from outside the dispatcher goroutine (§1, §4.6).
type Processor interface {
	// EmptyThisBuffer/FillThisBuffer forward one arrived buffer for
	// processing; the processor relinquishes it later via Kernel.Callback.
	EmptyThisBuffer(pid int, hdr *BufferHeader) error
	FillThisBuffer(pid int, hdr *BufferHeader) error

	// SendCommand forwards a command the kernel could not complete
	// synchronously because buffers are still claimed by the processor
	// (§4.3, §4.4).
	SendCommand(cmd Command, pid int, cmdData any) error

	// PrepareToTransfer/TransferAndProcess/StopAndReturn implement the
	// state-set action column (§4.2). pid is AllPorts or a single port.
	PrepareToTransfer(pid int) error
	TransferAndProcess(pid int) error
	StopAndReturn(pid int) error
}

// ResourceManager proxies the external resource manager (§3, §4.8).
type ResourceManager interface {
	Init(componentName string, priority int, cb ResourceManagerCallbacks) error
	Deinit() error
	// Acquire requests the component's declared resources. The outcome is
	// RMGranted on success; preempted/insufficient map to their named
	// errors in state.go.
	Acquire() (RMOutcome, error)
	Release() error
}

// ResourceManagerCallbacks are registered at Init time; the RM proxy must
// deliver each as a PluggableEvent on the owning kernel's queue rather than
// calling back synchronously (§4.8), so that RM notifications serialise
// through the same dispatcher as everything else.
type ResourceManagerCallbacks struct {
	OnWaitComplete func(rid string)
	OnPreempt      func(rid string)
	OnPreemptEnd   func(rid string)
}

// RMOutcome is the result of a ResourceManager.Acquire call.
type RMOutcome int

const (
	RMGranted RMOutcome = iota
	RMPreemptionInProgress
	RMInsufficientResources
)

// FSM is the external top-level state machine collaborator (§3, §4.2, §4.9).
// The kernel never mutates State/Substate itself; it only reads Substate to
// decide when a handler's work is actually done, and calls the two
// completion hooks when it is.
type FSM interface {
	Substate() Substate
	// BeginTransition is called whenever a state-set handler's action did
	// not complete synchronously, so the FSM can move into the
	// corresponding transient substate (LoadedToIdle, ExecutingToIdle,
	// PauseToIdle, IdleToLoaded) before any further dispatch queries
	// Substate.
	BeginTransition(target State)
	CompleteTransition(target State, err error)
	CompleteCommand(cmd Command, port int, err error)
}

// EventSink receives the events the kernel emits to the IL Client (§6).
type EventSink interface {
	CommandComplete(cmd Command, port int, err error)
	PortSettingsChanged(port int, subIndex uint32)
	PortFormatDetected(port int)
	BufferFlag(port int, flags BufferFlags)
	Mark(data any)
	Error(err error)
	EmptyBufferDone(hdr *BufferHeader)
	FillBufferDone(hdr *BufferHeader)
}

// TunnelPeer is the per-peer (mutex, semaphore, waiter-count) synchronisation
// record described in §5. A concrete implementation guards the handshake:
// acquire the peer's lock, read its waiter count, post if zero, release; the
// kernel only ever calls Post then, if it proceeded, WaitOnce.
type TunnelPeer interface {
	// Post posts the peer's semaphore if it currently has no waiters and
	// reports true. If waiters are already present it reports false and
	// does not post (back-pressure — caller must defer).
	Post() bool
	// WaitOnce blocks until the peer has re-synced after a successful Post.
	WaitOnce()
	// Forward delivers a header to the peer's corresponding port.
	Forward(pid int, dir Direction, hdr *BufferHeader) error
}
