package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory VectorStore. It backs unit tests and the
// in-memory serve mode where no database is configured. Queries are a
// linear scan, which is adequate for single-session registry sizes.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record

	// Error injection for exercising degraded-store behavior in tests.
	FailQueries bool
	FailUpserts bool
	FailDeletes bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

// Upsert writes or overwrites a vector and its metadata. A nil embedding
// updates metadata only.
func (m *MemoryStore) Upsert(ctx context.Context, id string, embedding []float32, meta Metadata) error {
	if m.FailUpserts {
		return fmt.Errorf("upserting %s: %w", id, ErrUnavailable)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		if embedding == nil {
			return fmt.Errorf("metadata-only upsert for unknown id %s", id)
		}
		rec = &Record{ID: id}
		m.records[id] = rec
	}
	if embedding != nil {
		vec := make([]float32, len(embedding))
		copy(vec, embedding)
		rec.Embedding = vec
	}
	rec.Meta = meta
	return nil
}

// QueryNearest returns up to k stored vectors ordered by ascending cosine
// distance. Equal distances order by earlier FirstSeen for determinism.
func (m *MemoryStore) QueryNearest(ctx context.Context, embedding []float32, k int) ([]Neighbor, error) {
	if m.FailQueries {
		return nil, fmt.Errorf("querying nearest: %w", ErrUnavailable)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		Neighbor
		firstSeen int64
	}
	candidates := make([]scored, 0, len(m.records))
	for id, rec := range m.records {
		candidates = append(candidates, scored{
			Neighbor:  Neighbor{ID: id, Distance: CosineDistance(embedding, rec.Embedding)},
			firstSeen: rec.Meta.FirstSeen.UnixNano(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].firstSeen < candidates[j].firstSeen
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	neighbors := make([]Neighbor, 0, k)
	for _, c := range candidates[:k] {
		neighbors = append(neighbors, c.Neighbor)
	}
	return neighbors, nil
}

// DeleteAll clears every stored vector.
func (m *MemoryStore) DeleteAll(ctx context.Context) error {
	if m.FailDeletes {
		return fmt.Errorf("deleting all records: %w", ErrUnavailable)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*Record)
	return nil
}

// Count returns the number of stored vectors.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Get returns a copy of the stored record, or nil if absent.
func (m *MemoryStore) Get(id string) *Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil
	}
	cp := *rec
	cp.Embedding = make([]float32, len(rec.Embedding))
	copy(cp.Embedding, rec.Embedding)
	return &cp
}
