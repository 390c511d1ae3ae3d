package tracker

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Snapshot returns a point-in-time copy of one identity.
func (t *Tracker) Snapshot(id string) (Snapshot, bool) {
	return t.registry.Snapshot(id)
}

// Snapshots returns point-in-time copies of every identity, ordered by
// first appearance.
func (t *Tracker) Snapshots() []Snapshot {
	return t.registry.Snapshots()
}

// FleetSummary computes aggregate statistics across all identities on
// demand. The concentration average is per observation: every recorded
// score weighs equally regardless of which identity it belongs to.
func (t *Tracker) FleetSummary() FleetSummary {
	snapshots := t.registry.Snapshots()

	summary := FleetSummary{
		TotalIdentities:     len(snapshots),
		EmotionDistribution: make(map[string]int),
	}

	var concentrationSum float64
	var concentrationCount int
	for _, snap := range snapshots {
		summary.TotalDetections += snap.TotalDetections
		for _, score := range snap.Concentration {
			concentrationSum += score
			concentrationCount++
		}
		for _, sample := range snap.Emotions {
			summary.EmotionDistribution[sample.Label]++
		}
	}
	if concentrationCount > 0 {
		summary.AvgConcentration = concentrationSum / float64(concentrationCount)
	}
	return summary
}

// BuildExport assembles the full session document: every identity with its
// complete history plus the fleet summary.
func (t *Tracker) BuildExport() SessionExport {
	return SessionExport{
		ExportedAt: time.Now().UTC(),
		Identities: t.Snapshots(),
		Summary:    t.FleetSummary(),
	}
}

// WriteSnapshot serializes the session document to w as indented JSON.
func (t *Tracker) WriteSnapshot(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t.BuildExport()); err != nil {
		return fmt.Errorf("encoding session export: %w", err)
	}
	return nil
}

// ExportSnapshot writes the session document to path. An empty path writes
// a timestamped file in dir instead and returns the chosen path.
func (t *Tracker) ExportSnapshot(path, dir string) (string, error) {
	if path == "" {
		path = filepath.Join(dir, fmt.Sprintf("session_%s.json", time.Now().Format("20060102_150405")))
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config or operator input
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	if err := t.WriteSnapshot(f); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing export file: %w", err)
	}
	return path, nil
}
