package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jromero/facetrack/internal/store"
	"github.com/jromero/facetrack/internal/tracker"
)

func postObservation(t *testing.T, h *ObservationsHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/observations", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Resolve(w, req)
	return w
}

func observationBody(embedding []float32, emotion, timestamp string) string {
	payload := map[string]any{
		"embedding":     embedding,
		"emotion":       emotion,
		"confidence":    90,
		"concentration": 60,
		"timestamp":     timestamp,
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestObservationsResolve(t *testing.T) {
	h := NewObservationsHandler(testTracker())

	w := postObservation(t, h, observationBody(testEmbedding(0), "happy", "2026-03-10T09:00:00Z"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp observationResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.IdentityID == "" {
		t.Error("identity_id missing from response")
	}
	if resp.Warning != "" {
		t.Errorf("unexpected warning: %q", resp.Warning)
	}

	// The same face again resolves to the same id.
	w = postObservation(t, h, observationBody(testEmbedding(0), "sad", "2026-03-10T09:00:01Z"))
	var again observationResponse
	if err := json.NewDecoder(w.Body).Decode(&again); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if again.IdentityID != resp.IdentityID {
		t.Errorf("second observation resolved to %s, want %s", again.IdentityID, resp.IdentityID)
	}
}

func TestObservationsResolveBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{not json"},
		{"bad timestamp", observationBody(testEmbedding(0), "happy", "yesterday")},
		{"wrong dimensionality", observationBody([]float32{1, 0}, "happy", "2026-03-10T09:00:00Z")},
		{"unknown emotion", observationBody(testEmbedding(0), "bored", "2026-03-10T09:00:00Z")},
		{"missing timestamp", observationBody(testEmbedding(0), "happy", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewObservationsHandler(testTracker())
			w := postObservation(t, h, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestObservationsResolveDegradedStore(t *testing.T) {
	ms := store.NewMemoryStore()
	ms.FailUpserts = true
	trk := tracker.New(ms, tracker.Options{
		EmbeddingDim:      4,
		DistanceThreshold: 0.6,
		CandidateK:        5,
		Labels:            []string{"happy"},
	})
	h := NewObservationsHandler(trk)

	w := postObservation(t, h, observationBody(testEmbedding(0), "happy", "2026-03-10T09:00:00Z"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (identity stays valid), body: %s", w.Code, w.Body.String())
	}

	var resp observationResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.IdentityID == "" {
		t.Error("identity_id missing despite degraded persistence")
	}
	if resp.Warning == "" {
		t.Error("degraded persistence not surfaced as a warning")
	}
}

func TestObservationsResolveEmbeddingAsJSONNumbers(t *testing.T) {
	h := NewObservationsHandler(testTracker())

	// Integers and floats mix freely in the embedding array.
	body := fmt.Sprintf(`{"embedding":[1,0.0,0,0],"emotion":"happy","confidence":90,"concentration":60,"timestamp":%q}`, "2026-03-10T09:00:00Z")
	w := postObservation(t, h, body)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
}
