package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

var memT0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func metaAt(ts time.Time) Metadata {
	return Metadata{
		FirstSeen:       ts,
		LastSeen:        ts,
		TotalDetections: 1,
		DominantEmotion: "neutral",
	}
}

func TestMemoryStoreUpsertAndGet(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	if err := ms.Upsert(ctx, "a", []float32{1, 0}, metaAt(memT0)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rec := ms.Get("a")
	if rec == nil {
		t.Fatal("Get() returned nil for stored id")
	}
	if rec.Embedding[0] != 1 {
		t.Errorf("stored embedding = %v, want [1 0]", rec.Embedding)
	}

	// Get hands out a copy.
	rec.Embedding[0] = 99
	if ms.Get("a").Embedding[0] != 1 {
		t.Error("mutating a returned record leaked into the store")
	}
}

func TestMemoryStoreMetadataOnlyUpsert(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	if err := ms.Upsert(ctx, "a", nil, metaAt(memT0)); err == nil {
		t.Error("metadata-only upsert for unknown id succeeded, want error")
	}

	if err := ms.Upsert(ctx, "a", []float32{1, 0}, metaAt(memT0)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	updated := metaAt(memT0)
	updated.TotalDetections = 5
	if err := ms.Upsert(ctx, "a", nil, updated); err != nil {
		t.Fatalf("metadata-only Upsert() error = %v", err)
	}

	rec := ms.Get("a")
	if rec.Meta.TotalDetections != 5 {
		t.Errorf("TotalDetections = %d, want 5", rec.Meta.TotalDetections)
	}
	if len(rec.Embedding) != 2 {
		t.Error("metadata-only upsert dropped the embedding")
	}
}

func TestMemoryStoreQueryNearest(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	vectors := map[string][]float32{
		"exact":      {1, 0, 0},
		"orthogonal": {0, 1, 0},
		"opposite":   {-1, 0, 0},
	}
	for id, v := range vectors {
		if err := ms.Upsert(ctx, id, v, metaAt(memT0)); err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}

	neighbors, err := ms.QueryNearest(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("QueryNearest() error = %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(neighbors))
	}
	if neighbors[0].ID != "exact" || neighbors[0].Distance != 0 {
		t.Errorf("nearest = %s@%v, want exact@0", neighbors[0].ID, neighbors[0].Distance)
	}
	if neighbors[1].ID != "orthogonal" {
		t.Errorf("second = %s, want orthogonal", neighbors[1].ID)
	}

	all, err := ms.QueryNearest(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("QueryNearest() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("k beyond store size returned %d neighbors, want 3", len(all))
	}
}

func TestMemoryStoreQueryNearestTieOrdersByFirstSeen(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	// Both orthogonal to the query: identical distance 1.0.
	if err := ms.Upsert(ctx, "younger", []float32{0, 1, 0}, metaAt(memT0.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := ms.Upsert(ctx, "older", []float32{0, 0, 1}, metaAt(memT0)); err != nil {
		t.Fatal(err)
	}

	neighbors, err := ms.QueryNearest(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("QueryNearest() error = %v", err)
	}
	if neighbors[0].ID != "older" {
		t.Errorf("equidistant neighbors ordered %s first, want older", neighbors[0].ID)
	}
}

func TestMemoryStoreEmpty(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	neighbors, err := ms.QueryNearest(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("QueryNearest() error = %v", err)
	}
	if len(neighbors) != 0 {
		t.Errorf("empty store returned %d neighbors", len(neighbors))
	}
}

func TestMemoryStoreDeleteAllAndCount(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	_ = ms.Upsert(ctx, "a", []float32{1, 0}, metaAt(memT0))
	_ = ms.Upsert(ctx, "b", []float32{0, 1}, metaAt(memT0))

	if count, _ := ms.Count(ctx); count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}

	if err := ms.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if count, _ := ms.Count(ctx); count != 0 {
		t.Errorf("Count() after DeleteAll = %d, want 0", count)
	}
}

func TestMemoryStoreFailureInjection(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	ms.FailQueries = true
	if _, err := ms.QueryNearest(ctx, []float32{1, 0}, 1); !errors.Is(err, ErrUnavailable) {
		t.Errorf("QueryNearest() error = %v, want ErrUnavailable", err)
	}

	ms.FailUpserts = true
	if err := ms.Upsert(ctx, "a", []float32{1, 0}, metaAt(memT0)); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Upsert() error = %v, want ErrUnavailable", err)
	}

	ms.FailDeletes = true
	if err := ms.DeleteAll(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("DeleteAll() error = %v, want ErrUnavailable", err)
	}
}
