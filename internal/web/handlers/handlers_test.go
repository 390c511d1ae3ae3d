package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/jromero/facetrack/internal/store"
	"github.com/jromero/facetrack/internal/tracker"
)

var testTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func testTracker() *tracker.Tracker {
	return tracker.New(store.NewMemoryStore(), tracker.Options{
		EmbeddingDim:      4,
		DistanceThreshold: 0.6,
		CandidateK:        5,
		Labels:            []string{"angry", "disgust", "fear", "happy", "neutral", "sad", "surprise"},
	})
}

func testEmbedding(i int) []float32 {
	v := make([]float32, 4)
	v[i] = 1
	return v
}

func seedIdentity(t *testing.T, trk *tracker.Tracker, i int) string {
	t.Helper()
	id, err := trk.Resolve(context.Background(), tracker.Observation{
		Embedding:     testEmbedding(i),
		Emotion:       "happy",
		Confidence:    90,
		Concentration: 60,
		Timestamp:     testTime.Add(time.Duration(i) * time.Second),
	})
	if err != nil {
		t.Fatalf("seeding identity: %v", err)
	}
	return id
}
