package api

import (
	"fmt"
	"log"

	"github.com/tizedge/omxkernel/internal/eventlog"
	"github.com/tizedge/omxkernel/internal/kernel"
	"github.com/tizedge/omxkernel/internal/registry"
)

// kernelEventSink bridges kernel.EventSink callbacks into the durable
// event log and the SQLite audit registry. reg may be nil (audit trail
// disabled); log is always non-nil once an instance is constructed.
type kernelEventSink struct {
	componentID string
	log         *eventlog.ComponentLog
	reg         *registry.DB
}

func newKernelEventSink(componentID string, log *eventlog.ComponentLog, reg *registry.DB) *kernelEventSink {
	return &kernelEventSink{componentID: componentID, log: log, reg: reg}
}

func (s *kernelEventSink) CommandComplete(cmd kernel.Command, port int, err error) {
	errStr := errString(err)
	s.log.Append(eventlog.Record{
		Kind:    eventlog.KindCommandComplete,
		Port:    port,
		Command: cmd.String(),
		Error:   errStr,
	})
	if s.reg == nil {
		return
	}
	if recErr := s.reg.RecordCommandComplete(registry.CommandRecord{
		ComponentID: s.componentID,
		Command:     cmd.String(),
		Port:        port,
		Error:       errStr,
	}); recErr != nil {
		log.Printf("registry: record command complete: %v", recErr)
	}
	if cmd == kernel.CmdMarkBuffer {
		if recErr := s.reg.RecordMarkConsumed(registry.MarkRecord{
			ComponentID: s.componentID,
			Port:        port,
			Error:       errStr,
		}); recErr != nil {
			log.Printf("registry: record mark consumed: %v", recErr)
		}
	}
}

func (s *kernelEventSink) PortSettingsChanged(port int, subIndex uint32) {
	s.log.Append(eventlog.Record{
		Kind:   eventlog.KindPortSettingsChang,
		Port:   port,
		Detail: fmt.Sprintf("sub_index=%d", subIndex),
	})
}

func (s *kernelEventSink) PortFormatDetected(port int) {
	s.log.Append(eventlog.Record{Kind: eventlog.KindPortFormatDetect, Port: port})
}

func (s *kernelEventSink) BufferFlag(port int, flags kernel.BufferFlags) {
	s.log.Append(eventlog.Record{
		Kind:   eventlog.KindBufferFlag,
		Port:   port,
		Detail: fmt.Sprintf("flags=%d eos=%v", flags, flags.EOS()),
	})
}

func (s *kernelEventSink) Mark(data any) {
	s.log.Append(eventlog.Record{Kind: eventlog.KindMark, Detail: fmt.Sprintf("%v", data)})
}

func (s *kernelEventSink) Error(err error) {
	s.log.Append(eventlog.Record{Kind: eventlog.KindError, Error: errString(err)})
}

func (s *kernelEventSink) EmptyBufferDone(hdr *kernel.BufferHeader) {
	s.log.Append(eventlog.Record{Kind: eventlog.KindEmptyBufferDone, Port: hdr.InputPortIndex})
}

func (s *kernelEventSink) FillBufferDone(hdr *kernel.BufferHeader) {
	s.log.Append(eventlog.Record{Kind: eventlog.KindFillBufferDone, Port: hdr.OutputPortIndex})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
