package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jromero/facetrack/internal/config"
	"github.com/jromero/facetrack/internal/store"
	"github.com/jromero/facetrack/internal/tracker"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Web: config.WebConfig{
			Host:      "127.0.0.1",
			Port:      0,
			ExportDir: t.TempDir(),
		},
	}
	trk := tracker.New(store.NewMemoryStore(), tracker.Options{
		EmbeddingDim:      4,
		DistanceThreshold: 0.6,
		CandidateK:        5,
		Labels:            []string{"happy", "sad", "neutral"},
	})
	return NewServer(cfg, trk)
}

func TestServerHealth(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %q, want ok", resp["status"])
	}
}

func TestServerObservationRoundtrip(t *testing.T) {
	s := testServer(t)

	body := `{
		"embedding": [1, 0, 0, 0],
		"emotion": "happy",
		"confidence": 95,
		"concentration": 70,
		"timestamp": "2026-03-10T09:00:00Z"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/observations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("observation status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	var resolved struct {
		IdentityID string `json:"identity_id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resolved); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	// The identity shows up through the read side of the same router.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/identities/"+resolved.IdentityID, nil)
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("identity status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	var snap tracker.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.ID != resolved.IdentityID {
		t.Errorf("snapshot id = %s, want %s", snap.ID, resolved.IdentityID)
	}
}

func TestServerUnknownRoute(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
