// Package api exposes the component kernel's standard entry points
// (SendCommand, EmptyThisBuffer, FillThisBuffer, Get/SetParameter) as a
// local HTTP API over a Unix domain socket, using an http.Server bound
// to net.Listen("unix", ...) and Go 1.22 method-pattern ServeMux
// routing.
package api

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/tizedge/omxkernel/internal/config"
	"github.com/tizedge/omxkernel/internal/eventlog"
	"github.com/tizedge/omxkernel/internal/registry"
)

// Server is the omxkerneld HTTP API server. Each running component
// instance is kept in-process in s.instances; the server never persists
// buffer data, only the audit trail in registry and the event log.
type Server struct {
	cfg      *config.Config
	registry *registry.DB
	events   *eventlog.Store
	mux      *http.ServeMux
	server   *http.Server
	ln       net.Listener

	mu        sync.Mutex
	instances map[string]*instance
}

// NewServer creates a new API server. reg may be nil, in which case no
// audit trail is recorded. events must be non-nil for a server that
// creates components or serves the event feed.
func NewServer(cfg *config.Config, reg *registry.DB, events *eventlog.Store) *Server {
	s := &Server{
		cfg:       cfg,
		registry:  reg,
		events:    events,
		mux:       http.NewServeMux(),
		instances: make(map[string]*instance),
	}
	s.registerRoutes()
	s.server = &http.Server{Handler: s.mux}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /v1/components", s.handleCreateComponent)
	s.mux.HandleFunc("GET /v1/components", s.handleListComponents)
	s.mux.HandleFunc("GET /v1/components/{id}", s.handleGetComponent)
	s.mux.HandleFunc("DELETE /v1/components/{id}", s.handleDeleteComponent)

	s.mux.HandleFunc("POST /v1/components/{id}/command", s.handleCommand)
	s.mux.HandleFunc("POST /v1/components/{id}/ports/{pid}/etb", s.handleEmptyThisBuffer)
	s.mux.HandleFunc("POST /v1/components/{id}/ports/{pid}/ftb", s.handleFillThisBuffer)
	s.mux.HandleFunc("GET /v1/components/{id}/ports/{pid}/param/{index}", s.handleGetParameter)
	s.mux.HandleFunc("POST /v1/components/{id}/ports/{pid}/param/{index}", s.handleSetParameter)

	s.mux.HandleFunc("GET /v1/components/{id}/events", s.handleEvents)

	s.mux.HandleFunc("GET /v1/status", s.handleStatus)
}

// Start begins listening on the configured unix socket.
func (s *Server) Start() error {
	os.Remove(s.cfg.SocketPath)

	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return err
	}
	s.ln = ln

	log.Printf("omxkerneld API listening on %s", s.cfg.SocketPath)

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server, then closes every live
// instance's kernel and processor.
func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)

	s.mu.Lock()
	insts := make([]*instance, 0, len(s.instances))
	for _, inst := range s.instances {
		insts = append(insts, inst)
	}
	s.instances = make(map[string]*instance)
	s.mu.Unlock()

	for _, inst := range insts {
		inst.close()
	}
	return err
}

type statusResponse struct {
	Status         string `json:"status"`
	ComponentCount int    `json:"component_count"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.instances)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, statusResponse{
		Status:         "running",
		ComponentCount: n,
	})
}
