package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

func parseParamIndex(r *http.Request) (uint32, error) {
	n, err := strconv.ParseUint(r.PathValue("index"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// handleGetParameter serves GET /v1/components/{id}/ports/{pid}/param/{index}.
// The owning port is resolved from the index alone (find_managing_port,
// §4.7) — {pid} in the path is for REST readability, not dispatch.
func (s *Server) handleGetParameter(w http.ResponseWriter, r *http.Request) {
	inst := s.lookupInstance(r.PathValue("id"))
	if inst == nil {
		writeError(w, http.StatusNotFound, "component not found")
		return
	}
	index, err := parseParamIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid parameter index")
		return
	}

	var v any
	if err := inst.kernel.GetParameter(index, &v); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleSetParameter serves POST /v1/components/{id}/ports/{pid}/param/{index}.
func (s *Server) handleSetParameter(w http.ResponseWriter, r *http.Request) {
	inst := s.lookupInstance(r.PathValue("id"))
	if inst == nil {
		writeError(w, http.StatusNotFound, "component not found")
		return
	}
	index, err := parseParamIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid parameter index")
		return
	}

	var v any
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if err := inst.kernel.SetParameter(index, v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
