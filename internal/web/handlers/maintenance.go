package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jromero/facetrack/internal/tracker"
)

// MaintenanceHandler serves export and reset operations.
type MaintenanceHandler struct {
	tracker   *tracker.Tracker
	exportDir string
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(trk *tracker.Tracker, exportDir string) *MaintenanceHandler {
	return &MaintenanceHandler{tracker: trk, exportDir: exportDir}
}

type exportRequest struct {
	Path string `json:"path"`
}

// Export handles POST /api/v1/export. Writes the full session snapshot
// (all identities with history plus the fleet summary) to the requested
// path, or to a timestamped file in the configured export directory.
func (h *MaintenanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}

	path, err := h.tracker.ExportSnapshot(req.Path, h.exportDir)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"path": path})
}

// Reset handles POST /api/v1/reset. Clears all identities and the vector
// store together.
func (h *MaintenanceHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Reset(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
