package kernel

import (
	"container/heap"
	"sync"
)

// msgTag is the closed set of message classes the dispatcher recognises
// (§4.1). The priority associated with a tag is assigned at enqueue time
// and stored on the message envelope (message.priority), not in any of the
// per-tag payload structs.
type msgTag int

const (
	tagSendCommand msgTag = iota
	tagEmptyThisBuffer
	tagFillThisBuffer
	tagCallback
	tagPluggableEvent
)

const (
	prioCommand      = 0
	prioBuffer       = 1
	prioDefault      = 2
)

func tagPriority(t msgTag) int {
	switch t {
	case tagSendCommand:
		return prioCommand
	case tagEmptyThisBuffer, tagFillThisBuffer:
		return prioBuffer
	default:
		return prioDefault
	}
}

// sendCommandMsg is the payload of a tagSendCommand message.
type sendCommandMsg struct {
	cmd     Command
	param1  int
	cmdData any
}

// bufferMsg is the payload of a tagEmptyThisBuffer/tagFillThisBuffer message.
type bufferMsg struct {
	pid int
	hdr *BufferHeader
}

// callbackMsg is the payload of a tagCallback message. A dummy callback
// (used to drain egress on Pause resume, or to defer under tunnel
// back-pressure) carries hdr == nil and dir == DirMax.
type callbackMsg struct {
	pid int
	dir Direction
	hdr *BufferHeader
}

// pluggableEventMsg is the payload of a tagPluggableEvent message: an
// opaque event delivered with its own handler, used by the RM proxy to
// serialise wait-end/preempt/preempt-end notifications through the queue.
type pluggableEventMsg struct {
	handle func()
}

// message is the tagged variant carried by the priority queue.
type message struct {
	tag      msgTag
	priority int
	seq      uint64

	sendCommand    sendCommandMsg
	buffer         bufferMsg
	callback       callbackMsg
	pluggableEvent pluggableEventMsg

	index int // heap.Interface bookkeeping
}

// msgHeap is a min-heap ordered by (priority, seq): lower priority value
// dispatches first, and within a priority class FIFO order is preserved by
// the monotonic sequence number (§5 "FIFO within a priority class").
type msgHeap []*message

func (h msgHeap) Len() int { return len(h) }
func (h msgHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h msgHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *msgHeap) Push(x any) {
	m := x.(*message)
	m.index = len(*h)
	*h = append(*h, m)
}
func (h *msgHeap) Pop() any {
	old := *h
	n := len(old)
	m := old[n-1]
	old[n-1] = nil
	m.index = -1
	*h = old[:n-1]
	return m
}

// queue is the kernel's single multi-producer, single-consumer priority
// queue (§5). Submission entry points only ever push onto it; the
// dispatcher goroutine is its only consumer.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	heap   msgHeap
	nextSeq uint64
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(&q.heap)
	return q
}

// push enqueues m, assigning it the next sequence number, and wakes one
// blocked pop.
func (q *queue) push(m *message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	m.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.heap, m)
	q.cond.Signal()
}

// pop blocks until a message is available or the queue is closed, in which
// case ok is false. The dispatcher suspends here, and only here (§4.1,
// §5 "suspends only when its queue is empty").
func (q *queue) pop() (m *message, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.heap) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.heap) == 0 {
		return nil, false
	}
	return heap.Pop(&q.heap).(*message), true
}

// close stops the queue: later pushes are ignored, and pop keeps handing
// out the messages still queued at close time, returning ok == false only
// once the queue is empty.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *queue) enqueueSendCommand(cmd Command, pid int, cmdData any) {
	q.push(&message{
		tag:         tagSendCommand,
		priority:    prioCommand,
		sendCommand: sendCommandMsg{cmd: cmd, param1: pid, cmdData: cmdData},
	})
}

func (q *queue) enqueueEmptyThisBuffer(pid int, hdr *BufferHeader) {
	q.push(&message{
		tag:      tagEmptyThisBuffer,
		priority: prioBuffer,
		buffer:   bufferMsg{pid: pid, hdr: hdr},
	})
}

func (q *queue) enqueueFillThisBuffer(pid int, hdr *BufferHeader) {
	q.push(&message{
		tag:      tagFillThisBuffer,
		priority: prioBuffer,
		buffer:   bufferMsg{pid: pid, hdr: hdr},
	})
}

func (q *queue) enqueueCallback(pid int, dir Direction, hdr *BufferHeader) {
	q.push(&message{
		tag:      tagCallback,
		priority: prioDefault,
		callback: callbackMsg{pid: pid, dir: dir, hdr: hdr},
	})
}

// enqueueDummyCallback enqueues the sentinel callback used to drain egress
// on Pause resume and to defer a flush_egress pass under tunnel
// back-pressure (§4.4, §4.6, §5).
func (q *queue) enqueueDummyCallback() {
	q.enqueueCallback(AllPorts, DirMax, nil)
}

func (q *queue) enqueuePluggableEvent(handle func()) {
	q.push(&message{
		tag:            tagPluggableEvent,
		priority:       prioDefault,
		pluggableEvent: pluggableEventMsg{handle: handle},
	})
}
