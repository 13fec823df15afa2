// Package simproc provides a reference kernel.Processor: a media-processing
// leaf servant that relinquishes every buffer it receives, after an
// optional simulated processing delay, by calling back into the owning
// kernel. The asynchronous forward-then-callback shape is grounded on the
// demuxer's goroutine-plus-pending-map correlation pattern, generalized
// here from JSON-RPC request/response pairs to buffer forward/relinquish
// pairs.
package simproc

import (
	"context"
	"sync"
	"time"

	"github.com/tizedge/omxkernel/internal/kernel"
)

// Callback is the subset of *kernel.Kernel the processor calls back into.
type Callback interface {
	Callback(pid int, dir kernel.Direction, hdr *kernel.BufferHeader)
}

// Processor is a reference kernel.Processor implementation.
type Processor struct {
	cb    Callback
	delay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a processor that calls back into cb after delay has
// elapsed for each forwarded buffer. delay == 0 calls back asynchronously
// from a freshly spawned goroutine with no sleep. cb may be nil at
// construction time and supplied later with SetCallback, since the owning
// kernel.Kernel cannot exist before the processor it's constructed with.
func New(cb Callback, delay time.Duration) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{cb: cb, delay: delay, ctx: ctx, cancel: cancel}
}

// SetCallback binds the kernel a processor forwards buffers back into. It
// must be called before any EmptyThisBuffer/FillThisBuffer if New was given
// a nil Callback.
func (p *Processor) SetCallback(cb Callback) {
	p.cb = cb
}

func (p *Processor) EmptyThisBuffer(pid int, hdr *kernel.BufferHeader) error {
	p.process(pid, kernel.DirInput, hdr)
	return nil
}

func (p *Processor) FillThisBuffer(pid int, hdr *kernel.BufferHeader) error {
	p.process(pid, kernel.DirOutput, hdr)
	return nil
}

func (p *Processor) process(pid int, dir kernel.Direction, hdr *kernel.BufferHeader) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if p.delay > 0 {
			select {
			case <-time.After(p.delay):
			case <-p.ctx.Done():
				return
			}
		}
		p.cb.Callback(pid, dir, hdr)
	}()
}

func (p *Processor) SendCommand(cmd kernel.Command, pid int, cmdData any) error {
	return nil
}

func (p *Processor) PrepareToTransfer(pid int) error { return nil }
func (p *Processor) TransferAndProcess(pid int) error { return nil }
func (p *Processor) StopAndReturn(pid int) error      { return nil }

// Close cancels any in-flight simulated delays and waits for their
// goroutines to exit.
func (p *Processor) Close() {
	p.cancel()
	p.wg.Wait()
}
