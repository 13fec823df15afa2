package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/tizedge/omxkernel/internal/config"
	"github.com/tizedge/omxkernel/internal/eventlog"
	"github.com/tizedge/omxkernel/internal/kernel"
	"github.com/tizedge/omxkernel/internal/registry"
)

func waitForFn(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within 1s")
	}
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	reg, err := registry.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reg.Close() })

	cfg := config.DefaultConfig()
	cfg.DefaultBufferCount = 2

	s := NewServer(cfg, reg, eventlog.NewStore(filepath.Join(dir, "events"), 0))
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func createTestComponent(t *testing.T, s *Server, body string) componentResponse {
	t.Helper()
	req := httptest.NewRequest("POST", "/v1/components", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	s.handleCreateComponent(w, req)
	if w.Code != 201 {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp componentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCreateComponentRegistersPorts(t *testing.T) {
	s := setupTestServer(t)

	resp := createTestComponent(t, s, `{
		"name": "OMX.test.passthrough",
		"ports": [
			{"direction": "input", "domain": "audio"},
			{"direction": "output", "domain": "audio"}
		]
	}`)

	if resp.Name != "OMX.test.passthrough" {
		t.Fatalf("unexpected name %q", resp.Name)
	}
	if resp.Ports != 2 {
		t.Fatalf("expected 2 ports, got %d", resp.Ports)
	}

	inst := s.lookupInstance(resp.ID)
	if inst == nil {
		t.Fatalf("expected instance to be registered under returned id")
	}

	ports, err := s.registry.ListPortRegistrations(resp.ID)
	if err != nil {
		t.Fatalf("list port registrations: %v", err)
	}
	if len(ports) != 2 {
		t.Fatalf("expected 2 persisted port registrations, got %d", len(ports))
	}
}

func TestCommandStateSetDrivesFSM(t *testing.T) {
	s := setupTestServer(t)
	resp := createTestComponent(t, s, `{"name": "OMX.test.sink", "ports": [{"direction": "input", "domain": "audio"}]}`)
	inst := s.lookupInstance(resp.ID)

	req := httptest.NewRequest("POST", "/v1/components/"+resp.ID+"/command", bytes.NewBufferString(`{"command":"state_set","state":"Idle"}`))
	req.SetPathValue("id", resp.ID)
	w := httptest.NewRecorder()
	s.handleCommand(w, req)
	if w.Code != 202 {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	waitForFn(t, func() bool { return inst.fsm.Substate() == kernel.SubstateIdle })
}

func TestCommandUnknownCommandRejected(t *testing.T) {
	s := setupTestServer(t)
	resp := createTestComponent(t, s, `{"name": "OMX.test.sink"}`)

	req := httptest.NewRequest("POST", "/v1/components/"+resp.ID+"/command", bytes.NewBufferString(`{"command":"nonsense"}`))
	req.SetPathValue("id", resp.ID)
	w := httptest.NewRecorder()
	s.handleCommand(w, req)
	if w.Code != 400 {
		t.Fatalf("expected 400 for an unknown command, got %d", w.Code)
	}
}

func TestSetAndGetParameterRoundTrip(t *testing.T) {
	s := setupTestServer(t)
	resp := createTestComponent(t, s, `{"name": "OMX.test.filter", "ports": [{"direction": "input", "domain": "audio"}]}`)
	inst := s.lookupInstance(resp.ID)
	inst.ports[0].DeclareIndex(7)

	setReq := httptest.NewRequest("POST", "/v1/components/"+resp.ID+"/ports/0/param/7", bytes.NewBufferString(`{"sample_rate": 48000}`))
	setReq.SetPathValue("id", resp.ID)
	setReq.SetPathValue("pid", "0")
	setReq.SetPathValue("index", "7")
	w := httptest.NewRecorder()
	s.handleSetParameter(w, setReq)
	if w.Code != 204 {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	getReq := httptest.NewRequest("GET", "/v1/components/"+resp.ID+"/ports/0/param/7", nil)
	getReq.SetPathValue("id", resp.ID)
	getReq.SetPathValue("pid", "0")
	getReq.SetPathValue("index", "7")
	w2 := httptest.NewRecorder()
	s.handleGetParameter(w2, getReq)
	if w2.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w2.Code, w2.Body.String())
	}

	var got map[string]any
	if err := json.Unmarshal(w2.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["sample_rate"].(float64) != 48000 {
		t.Fatalf("unexpected parameter value: %v", got)
	}
}

func TestDeleteComponentClosesInstance(t *testing.T) {
	s := setupTestServer(t)
	resp := createTestComponent(t, s, `{"name": "OMX.test.sink"}`)

	req := httptest.NewRequest("DELETE", "/v1/components/"+resp.ID, nil)
	req.SetPathValue("id", resp.ID)
	w := httptest.NewRecorder()
	s.handleDeleteComponent(w, req)
	if w.Code != 204 {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if s.lookupInstance(resp.ID) != nil {
		t.Fatalf("expected instance to be removed")
	}
}

func TestEventsStreamsBufferedThenLiveRecord(t *testing.T) {
	s := setupTestServer(t)
	resp := createTestComponent(t, s, `{"name": "OMX.test.sink", "ports": [{"direction": "input", "domain": "audio"}]}`)

	cl := s.events.GetOrCreate(resp.ID)
	cl.Append(eventlog.Record{Kind: eventlog.KindError, Detail: "buffered before subscribe"})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/v1/components/"+resp.ID+"/events", nil).WithContext(ctx)
	req.SetPathValue("id", resp.ID)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.handleEvents(w, req)
		close(done)
	}()

	waitForFn(t, func() bool { return bytes.Contains(w.Body.Bytes(), []byte("buffered before subscribe")) })

	cl.Append(eventlog.Record{Kind: eventlog.KindMark, Detail: "live after subscribe"})
	waitForFn(t, func() bool { return bytes.Contains(w.Body.Bytes(), []byte("live after subscribe")) })
	cancel()
	<-done
}
