package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tizedge/omxkernel/internal/kernel"
)

// commandRequest is the body of POST /v1/components/{id}/command. param1
// on kernel.SendCommand is overloaded by command kind: StateSet carries
// the target state, while Flush/PortDisable/PortEnable carry a port index
// (or AllPorts when Port is omitted) and MarkBuffer carries a port index
// that must be given, plus the mark. This handler branches
// its parsing the same way SendCommand's dispatch does in
// internal/kernel/dispatch.go.
type commandRequest struct {
	Command string       `json:"command"`
	State   string       `json:"state,omitempty"`
	Port    *int         `json:"port,omitempty"`
	Mark    *markRequest `json:"mark,omitempty"`
}

type markRequest struct {
	TargetComponent string `json:"target_component"`
	Data            any    `json:"data,omitempty"`
}

var stateNames = map[string]kernel.State{
	"Loaded":           kernel.StateLoaded,
	"WaitForResources": kernel.StateWaitForResources,
	"Idle":             kernel.StateIdle,
	"Executing":        kernel.StateExecuting,
	"Pause":            kernel.StatePause,
}

func portOrAll(port *int) int {
	if port == nil {
		return kernel.AllPorts
	}
	return *port
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	inst := s.lookupInstance(r.PathValue("id"))
	if inst == nil {
		writeError(w, http.StatusNotFound, "component not found")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	switch req.Command {
	case "state_set":
		state, ok := stateNames[req.State]
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown state %q", req.State))
			return
		}
		inst.kernel.SendCommand(kernel.CmdStateSet, int(state), nil)

	case "flush":
		inst.kernel.SendCommand(kernel.CmdFlush, portOrAll(req.Port), nil)

	case "port_disable":
		inst.kernel.SendCommand(kernel.CmdPortDisable, portOrAll(req.Port), nil)

	case "port_enable":
		inst.kernel.SendCommand(kernel.CmdPortEnable, portOrAll(req.Port), nil)

	case "mark_buffer":
		if req.Port == nil {
			writeError(w, http.StatusBadRequest, "mark_buffer requires a port")
			return
		}
		if req.Mark == nil {
			writeError(w, http.StatusBadRequest, "mark_buffer requires a mark")
			return
		}
		inst.kernel.SendCommand(kernel.CmdMarkBuffer, *req.Port, kernel.Mark{
			TargetComponent: req.Mark.TargetComponent,
			Data:            req.Mark.Data,
		})

	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown command %q", req.Command))
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// bufferRequest is the body of the etb/ftb handlers. Data is a
// base64-encoded buffer payload, decoded by encoding/json's standard
// []byte handling.
type bufferRequest struct {
	Data                []byte `json:"data"`
	FilledLen           int    `json:"filled_len"`
	Offset              int    `json:"offset"`
	Flags               uint32 `json:"flags"`
	MarkTargetComponent string `json:"mark_target_component,omitempty"`
	MarkData            any    `json:"mark_data,omitempty"`
}

func parsePortID(r *http.Request) (int, error) {
	return strconv.Atoi(r.PathValue("pid"))
}

func (req *bufferRequest) toHeader() *kernel.BufferHeader {
	return &kernel.BufferHeader{
		Buffer:              req.Data,
		FilledLen:           req.FilledLen,
		Offset:              req.Offset,
		Flags:               kernel.BufferFlags(req.Flags),
		MarkTargetComponent: req.MarkTargetComponent,
		MarkData:            req.MarkData,
	}
}

func (s *Server) handleEmptyThisBuffer(w http.ResponseWriter, r *http.Request) {
	inst := s.lookupInstance(r.PathValue("id"))
	if inst == nil {
		writeError(w, http.StatusNotFound, "component not found")
		return
	}
	pid, err := parsePortID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid port id")
		return
	}
	var req bufferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	inst.kernel.EmptyThisBuffer(pid, req.toHeader())
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleFillThisBuffer(w http.ResponseWriter, r *http.Request) {
	inst := s.lookupInstance(r.PathValue("id"))
	if inst == nil {
		writeError(w, http.StatusNotFound, "component not found")
		return
	}
	pid, err := parsePortID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid port id")
		return
	}
	var req bufferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	inst.kernel.FillThisBuffer(pid, req.toHeader())
	w.WriteHeader(http.StatusAccepted)
}
