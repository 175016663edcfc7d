package apiServer

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/i5heu/ouroboros-graph/pkg/partition"
)

// handleCall dispatches one cross-partition method call to the local router.
// Method errors travel inside the response body so the caller can tell a
// failed method from a failed transport.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var req partition.CallRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid call request", http.StatusBadRequest)
		return
	}
	if req.Method == "" {
		http.Error(w, "method is required", http.StatusBadRequest)
		return
	}

	resp := partition.CallResponse{ID: req.ID}
	result, err := s.router.Call(r.Context(), partition.Local, req.Method, req.Payload)
	if err != nil {
		s.log.Warn("partition call failed", "method", req.Method, "id", req.ID, "error", err)
		resp.Error = err.Error()
	} else {
		resp.Result = result
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("failed to encode call response", "id", req.ID, "error", err)
	}
}
