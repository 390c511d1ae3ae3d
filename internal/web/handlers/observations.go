package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jromero/facetrack/internal/tracker"
)

// ObservationsHandler resolves incoming frame observations into identities.
type ObservationsHandler struct {
	tracker *tracker.Tracker
}

// NewObservationsHandler creates a new observations handler.
func NewObservationsHandler(trk *tracker.Tracker) *ObservationsHandler {
	return &ObservationsHandler{tracker: trk}
}

// observationRequest is one frame's detection payload from the video pipeline.
type observationRequest struct {
	Embedding     []float32 `json:"embedding"`
	Emotion       string    `json:"emotion"`
	Confidence    float64   `json:"confidence"`
	Concentration float64   `json:"concentration"`
	Timestamp     string    `json:"timestamp"` // RFC 3339
}

// observationResponse carries the resolved identity id. Warning is set when
// the identity is being served from memory because the store write failed.
type observationResponse struct {
	IdentityID string `json:"identity_id"`
	Warning    string `json:"warning,omitempty"`
}

// Resolve handles POST /api/v1/observations.
func (h *ObservationsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			respondError(w, http.StatusBadRequest, "timestamp must be RFC 3339")
			return
		}
		ts = parsed
	}

	obs := tracker.Observation{
		Embedding:     req.Embedding,
		Emotion:       req.Emotion,
		Confidence:    req.Confidence,
		Concentration: req.Concentration,
		Timestamp:     ts,
	}

	id, err := h.tracker.Resolve(r.Context(), obs)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, observationResponse{IdentityID: id})
	case tracker.IsMalformed(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrResetInProgress):
		respondError(w, http.StatusConflict, "reset in progress, retry the observation")
	case errors.Is(err, tracker.ErrPersistenceDegraded):
		// The identity is valid and tracked in-memory; the client should
		// know persistence is degraded but keep streaming.
		respondJSON(w, http.StatusOK, observationResponse{IdentityID: id, Warning: "persistence degraded"})
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
