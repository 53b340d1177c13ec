package api

import (
	"encoding/json"
	"net/http"

	"idleforge/internal/sim"

	"github.com/google/uuid"
)

// Handler methods for routerHandlers.
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.runtime.Snapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.runtime.Snapshot()
	stats := map[string]interface{}{
		"step":     snapshot.Step,
		"sequence": snapshot.Sequence,
		"metrics":  snapshot.Metrics,
		"dispatch": h.runtime.DispatchStats(),
		"journal":  h.runtime.JournalStats(),
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetBus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.runtime.BusSnapshot())
}

func (h *routerHandlers) handleGetDigest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"digest": h.runtime.StateDigest(),
	})
}

// commandRequest is the wire form of a submitted command. Priority is a
// name ("player", "automation") rather than the internal enum value.
type commandRequest struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Priority  string          `json:"priority"`
	RequestID string          `json:"requestId"`
}

func parsePriority(name string) (sim.Priority, bool) {
	switch name {
	case "player", "":
		return sim.PriorityPlayer, true
	case "automation":
		return sim.PriorityAutomation, true
	case "system":
		return sim.PrioritySystem, true
	default:
		return 0, false
	}
}

func (h *routerHandlers) handlePostCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Type == "" {
		writeError(w, "Command type is required", http.StatusBadRequest)
		return
	}

	priority, ok := parsePriority(req.Priority)
	if !ok {
		writeError(w, "Unknown priority", http.StatusBadRequest)
		return
	}

	// External callers never hold system privileges
	if priority == sim.PrioritySystem {
		writeError(w, "System priority is not accepted over HTTP", http.StatusForbidden)
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	accepted := h.runtime.Submit(sim.Command{
		Type:      req.Type,
		Payload:   req.Payload,
		Priority:  priority,
		RequestID: requestID,
	})
	if !accepted {
		writeError(w, "Command queue full", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]interface{}{
		"accepted":  true,
		"requestId": requestID,
	})
}

func (h *routerHandlers) handlePostFocus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Focused bool `json:"focused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	h.runtime.SetBackground(!req.Focused)
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleSaveExport(w http.ResponseWriter, r *http.Request) {
	if h.saveFunc == nil {
		writeError(w, "Save not configured", http.StatusNotImplemented)
		return
	}

	if err := h.saveFunc(); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
