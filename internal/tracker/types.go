// Package tracker resolves short-lived face-embedding observations into
// stable identities and aggregates per-identity emotion and concentration
// statistics over a session.
package tracker

import "time"

// Observation is one frame's worth of signal for one detected face.
// Confidence and Concentration are percentages in [0, 100].
type Observation struct {
	Embedding     []float32 `json:"embedding"`
	Emotion       string    `json:"emotion"`
	Confidence    float64   `json:"confidence"`
	Concentration float64   `json:"concentration"`
	Timestamp     time.Time `json:"timestamp"`
}

// EmotionSample is one observed emotion with its confidence and time.
type EmotionSample struct {
	Label      string    `json:"emotion"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Identity is the durable entity representing one tracked face. The
// embedding is the first-seen vector and is never recomputed; it anchors
// all future matching. Emotions and Concentration grow in lockstep, one
// entry per resolved observation.
type Identity struct {
	ID            string
	Embedding     []float32
	FirstSeen     time.Time
	LastSeen      time.Time
	Emotions      []EmotionSample
	Concentration []float64
}

// Snapshot is a read-only copy of an identity with derived statistics.
type Snapshot struct {
	ID               string          `json:"identity_id"`
	FirstSeen        time.Time       `json:"first_seen"`
	LastSeen         time.Time       `json:"last_seen"`
	Emotions         []EmotionSample `json:"emotions"`
	Concentration    []float64       `json:"concentration_scores"`
	TotalDetections  int             `json:"total_detections"`
	AvgConcentration float64         `json:"avg_concentration"`
	DominantEmotion  string          `json:"dominant_emotion"`
}

// FleetSummary aggregates statistics across every tracked identity.
// AvgConcentration is the mean over individual observations, not over
// per-identity averages.
type FleetSummary struct {
	TotalIdentities     int            `json:"total_identities"`
	TotalDetections     int            `json:"total_detections"`
	AvgConcentration    float64        `json:"avg_concentration"`
	EmotionDistribution map[string]int `json:"emotion_distribution"`
}

// SessionExport is the durable snapshot document written by export.
type SessionExport struct {
	ExportedAt time.Time    `json:"exported_at"`
	Identities []Snapshot   `json:"identities"`
	Summary    FleetSummary `json:"summary"`
}
