package handlers

import (
	"net/http"

	"github.com/jromero/facetrack/internal/tracker"
)

// SummaryHandler serves the fleet-wide statistics view.
type SummaryHandler struct {
	tracker *tracker.Tracker
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(trk *tracker.Tracker) *SummaryHandler {
	return &SummaryHandler{tracker: trk}
}

// Get handles GET /api/v1/summary. The summary is computed on demand, not
// cached, so it always reflects the current registry.
func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.tracker.FleetSummary())
}
