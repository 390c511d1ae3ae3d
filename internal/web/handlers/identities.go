package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jromero/facetrack/internal/tracker"
)

// IdentitiesHandler serves read-only identity views.
type IdentitiesHandler struct {
	tracker *tracker.Tracker
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(trk *tracker.Tracker) *IdentitiesHandler {
	return &IdentitiesHandler{tracker: trk}
}

// List handles GET /api/v1/identities.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshots := h.tracker.Snapshots()
	respondJSON(w, http.StatusOK, map[string]any{
		"identities": snapshots,
		"count":      len(snapshots),
	})
}

// Get handles GET /api/v1/identities/{id}.
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snapshot, ok := h.tracker.Snapshot(id)
	if !ok {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}
