package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tizedge/omxkernel/internal/kernel"
	"github.com/tizedge/omxkernel/internal/memport"
	"github.com/tizedge/omxkernel/internal/registry"
	"github.com/tizedge/omxkernel/internal/simfsm"
	"github.com/tizedge/omxkernel/internal/simproc"
	"github.com/tizedge/omxkernel/internal/simrm"
)

// instance bundles a running kernel.Kernel with the reference
// collaborators (ports, FSM, RM, processor) this server constructs for
// it, plus the event sink bridging kernel callbacks into audit storage.
type instance struct {
	id        string
	name      string
	createdAt time.Time

	kernel *kernel.Kernel
	ports  map[int]*memport.Port
	fsm    *simfsm.FSM
	rm     *simrm.RM
	proc   *simproc.Processor
	sink   *kernelEventSink
}

func (inst *instance) close() {
	inst.kernel.Close()
	inst.proc.Close()
}

// portSpec describes one data port to register on component creation.
type portSpec struct {
	Direction   string `json:"direction"` // "input" or "output"
	Domain      string `json:"domain"`    // "audio", "video", "image", "other"
	BufferCount int    `json:"buffer_count,omitempty"`
}

type createComponentRequest struct {
	ID    string     `json:"id,omitempty"`
	Name  string     `json:"name"`
	Ports []portSpec `json:"ports"`
}

type componentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Ports     int       `json:"port_count"`
}

func parseDirection(s string) (kernel.Direction, error) {
	switch s {
	case "input":
		return kernel.DirInput, nil
	case "output":
		return kernel.DirOutput, nil
	default:
		return 0, fmt.Errorf("unknown port direction %q", s)
	}
}

func parseDomain(s string) (kernel.Domain, error) {
	switch s {
	case "audio":
		return kernel.DomainAudio, nil
	case "video":
		return kernel.DomainVideo, nil
	case "image":
		return kernel.DomainImage, nil
	case "", "other":
		return kernel.DomainOther, nil
	default:
		return 0, fmt.Errorf("unknown port domain %q", s)
	}
}

func (s *Server) handleCreateComponent(w http.ResponseWriter, r *http.Request) {
	var req createComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	if !isValidID(id) {
		writeError(w, http.StatusBadRequest, "invalid component id")
		return
	}
	name := req.Name
	if name == "" {
		name = s.cfg.ComponentName
	}

	s.mu.Lock()
	if _, exists := s.instances[id]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "component already exists")
		return
	}
	s.mu.Unlock()

	fsm := simfsm.New()
	rm := simrm.New()
	proc := simproc.New(nil, 0)
	sink := newKernelEventSink(id, s.events.GetOrCreate(id), s.registry)
	k := kernel.New(name, proc, fsm, sink, rm)
	proc.SetCallback(k)

	ports := make(map[int]*memport.Port, len(req.Ports))
	for i, ps := range req.Ports {
		dir, err := parseDirection(ps.Direction)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		domain, err := parseDomain(ps.Domain)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		bufCount := ps.BufferCount
		if bufCount <= 0 {
			bufCount = s.cfg.DefaultBufferCount
		}
		port := memport.New(dir, domain, i)
		port.SetBufferCount(bufCount)
		k.RegisterPort(port, false)
		ports[i] = port
	}

	if s.registry != nil {
		if err := s.registry.RegisterComponent(id, name); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("registry: %v", err))
			return
		}
		for i, ps := range req.Ports {
			dir := "input"
			if ps.Direction == "output" {
				dir = "output"
			}
			domain := ps.Domain
			if domain == "" {
				domain = "other"
			}
			s.registry.RecordPortRegistration(registry.PortRegistration{
				ComponentID: id,
				PortIndex:   i,
				Direction:   dir,
				Domain:      domain,
			})
		}
	}

	go k.Run()

	inst := &instance{
		id:        id,
		name:      name,
		createdAt: time.Now(),
		kernel:    k,
		ports:     ports,
		fsm:       fsm,
		rm:        rm,
		proc:      proc,
		sink:      sink,
	}

	s.mu.Lock()
	s.instances[id] = inst
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, componentResponse{
		ID:        id,
		Name:      name,
		CreatedAt: inst.createdAt,
		Ports:     len(ports),
	})
}

func (s *Server) lookupInstance(id string) *instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances[id]
}

func (s *Server) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	inst := s.lookupInstance(r.PathValue("id"))
	if inst == nil {
		writeError(w, http.StatusNotFound, "component not found")
		return
	}
	writeJSON(w, http.StatusOK, componentResponse{
		ID:        inst.id,
		Name:      inst.name,
		CreatedAt: inst.createdAt,
		Ports:     len(inst.ports),
	})
}

func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]componentResponse, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, componentResponse{
			ID:        inst.id,
			Name:      inst.name,
			CreatedAt: inst.createdAt,
			Ports:     len(inst.ports),
		})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteComponent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	inst, ok := s.instances[id]
	if ok {
		delete(s.instances, id)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "component not found")
		return
	}
	inst.close()
	if s.events != nil {
		s.events.Remove(id)
	}
	w.WriteHeader(http.StatusNoContent)
}
