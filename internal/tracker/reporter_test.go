package tracker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jromero/facetrack/internal/store"
)

func populatedTracker(t *testing.T) *Tracker {
	t.Helper()
	trk := New(store.NewMemoryStore(), testOptions())
	ctx := context.Background()

	// Identity A: two observations, identity B: one.
	feed := []struct {
		embedding     []float32
		emotion       string
		concentration float64
	}{
		{basis(0), "happy", 0},
		{basis(0), "happy", 100},
		{basis(1), "sad", 50},
	}
	for i, f := range feed {
		if _, err := trk.Resolve(ctx, obsAt(f.embedding, f.emotion, f.concentration, t0.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}
	return trk
}

func TestFleetSummary(t *testing.T) {
	trk := populatedTracker(t)
	summary := trk.FleetSummary()

	if summary.TotalIdentities != 2 {
		t.Errorf("TotalIdentities = %d, want 2", summary.TotalIdentities)
	}
	if summary.TotalDetections != 3 {
		t.Errorf("TotalDetections = %d, want 3", summary.TotalDetections)
	}
	// Per-observation mean: (0 + 100 + 50) / 3, not a mean of per-identity means.
	if summary.AvgConcentration != 50 {
		t.Errorf("AvgConcentration = %v, want 50", summary.AvgConcentration)
	}
	if summary.EmotionDistribution["happy"] != 2 || summary.EmotionDistribution["sad"] != 1 {
		t.Errorf("EmotionDistribution = %v, want happy:2 sad:1", summary.EmotionDistribution)
	}
}

func TestFleetSummaryEmpty(t *testing.T) {
	trk := New(store.NewMemoryStore(), testOptions())
	summary := trk.FleetSummary()

	if summary.TotalIdentities != 0 || summary.TotalDetections != 0 || summary.AvgConcentration != 0 {
		t.Errorf("empty summary = %+v, want zeroes", summary)
	}
}

func TestExportSnapshotExplicitPath(t *testing.T) {
	trk := populatedTracker(t)
	path := filepath.Join(t.TempDir(), "session.json")

	got, err := trk.ExportSnapshot(path, "")
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if got != path {
		t.Errorf("returned path = %q, want %q", got, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}

	var export SessionExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(export.Identities) != 2 {
		t.Errorf("exported %d identities, want 2", len(export.Identities))
	}
	if export.Summary.TotalDetections != 3 {
		t.Errorf("exported TotalDetections = %d, want 3", export.Summary.TotalDetections)
	}
	if export.ExportedAt.IsZero() {
		t.Error("ExportedAt not set")
	}
	for _, ident := range export.Identities {
		if len(ident.Emotions) != ident.TotalDetections {
			t.Errorf("identity %s: %d emotion samples vs %d detections", ident.ID, len(ident.Emotions), ident.TotalDetections)
		}
	}
}

func TestExportSnapshotDefaultPath(t *testing.T) {
	trk := populatedTracker(t)
	dir := t.TempDir()

	got, err := trk.ExportSnapshot("", dir)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if filepath.Dir(got) != dir {
		t.Errorf("export written to %q, want directory %q", got, dir)
	}
	base := filepath.Base(got)
	if !strings.HasPrefix(base, "session_") || !strings.HasSuffix(base, ".json") {
		t.Errorf("export filename = %q, want session_<timestamp>.json", base)
	}
	if _, err := os.Stat(got); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}
