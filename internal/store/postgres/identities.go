package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/jromero/facetrack/internal/store"
)

// IdentityRepository stores identity embeddings and their summary metadata
// in PostgreSQL, optionally accelerated by an in-memory HNSW index for
// nearest-neighbor queries. It implements store.VectorStore; driver
// failures surface wrapped in store.ErrUnavailable so the caller can fall
// back to a registry scan.
type IdentityRepository struct {
	pool *Pool
	dim  int

	mu          sync.RWMutex
	hnsw        *store.HNSWIndex
	hnswPath    string
	hnswEnabled bool
}

// NewIdentityRepository creates a repository for the given embedding
// dimensionality.
func NewIdentityRepository(pool *Pool, dim int) *IdentityRepository {
	return &IdentityRepository{pool: pool, dim: dim}
}

// Upsert writes or overwrites a vector and its metadata. A nil embedding
// refreshes metadata only.
func (r *IdentityRepository) Upsert(ctx context.Context, id string, embedding []float32, meta store.Metadata) error {
	if embedding == nil {
		res, err := r.pool.Exec(ctx, `
			UPDATE identities
			SET last_seen = $2, total_detections = $3, dominant_emotion = $4, avg_concentration = $5
			WHERE id = $1
		`, id, meta.LastSeen, meta.TotalDetections, meta.DominantEmotion, meta.AvgConcentration)
		if err != nil {
			return fmt.Errorf("updating identity %s metadata: %w: %v", id, store.ErrUnavailable, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating identity %s metadata: %w: %v", id, store.ErrUnavailable, err)
		}
		if affected == 0 {
			// The row never made it to the store; the caller re-inserts
			// with the full embedding.
			return fmt.Errorf("metadata-only upsert for unknown id %s", id)
		}
		return nil
	}

	vec := pgvector.NewVector(embedding)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO identities (id, embedding, first_seen, last_seen, total_detections, dominant_emotion, avg_concentration)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			last_seen = EXCLUDED.last_seen,
			total_detections = EXCLUDED.total_detections,
			dominant_emotion = EXCLUDED.dominant_emotion,
			avg_concentration = EXCLUDED.avg_concentration
	`, id, vec, meta.FirstSeen, meta.LastSeen, meta.TotalDetections, meta.DominantEmotion, meta.AvgConcentration)
	if err != nil {
		return fmt.Errorf("upserting identity %s: %w: %v", id, store.ErrUnavailable, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.hnswEnabled {
		_ = r.hnsw.Add(store.Record{ID: id, Embedding: embedding, Meta: meta})
	}
	return nil
}

// QueryNearest returns up to k identities ordered by ascending cosine
// distance. Prefers the HNSW index when enabled; otherwise runs a pgvector
// `<=>` query. Safe on an empty table.
func (r *IdentityRepository) QueryNearest(ctx context.Context, embedding []float32, k int) ([]store.Neighbor, error) {
	r.mu.RLock()
	useHNSW := r.hnswEnabled && !r.hnsw.IsEmpty()
	r.mu.RUnlock()

	if useHNSW {
		neighbors, err := r.hnsw.Search(embedding, k)
		if err == nil {
			return neighbors, nil
		}
		// Index failure falls through to SQL.
	}

	vec := pgvector.NewVector(embedding)
	rows, err := r.pool.Query(ctx, `
		SELECT id, embedding <=> $1 AS distance
		FROM identities
		ORDER BY embedding <=> $1
		LIMIT $2
	`, vec, k)
	if err != nil {
		return nil, fmt.Errorf("querying nearest identities: %w: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var neighbors []store.Neighbor
	for rows.Next() {
		var n store.Neighbor
		if err := rows.Scan(&n.ID, &n.Distance); err != nil {
			return nil, fmt.Errorf("scanning neighbor: %w: %v", store.ErrUnavailable, err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating neighbors: %w: %v", store.ErrUnavailable, err)
	}
	return neighbors, nil
}

// DeleteAll clears every stored identity and the HNSW index. Used only by
// the reset operation.
func (r *IdentityRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "TRUNCATE identities"); err != nil {
		return fmt.Errorf("truncating identities: %w: %v", store.ErrUnavailable, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.hnswEnabled {
		r.hnsw.Clear()
	}
	return nil
}

// Count returns the number of stored identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting identities: %w: %v", store.ErrUnavailable, err)
	}
	return count, nil
}

// LoadAll returns every stored record, used for HNSW builds and registry
// hydration on startup.
func (r *IdentityRepository) LoadAll(ctx context.Context) ([]store.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, embedding, first_seen, last_seen, total_detections, dominant_emotion, avg_concentration
		FROM identities
		ORDER BY first_seen
	`)
	if err != nil {
		return nil, fmt.Errorf("loading identities: %w: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		var rec store.Record
		var vec pgvector.Vector
		if err := rows.Scan(&rec.ID, &vec, &rec.Meta.FirstSeen, &rec.Meta.LastSeen,
			&rec.Meta.TotalDetections, &rec.Meta.DominantEmotion, &rec.Meta.AvgConcentration); err != nil {
			return nil, fmt.Errorf("scanning identity: %w: %v", store.ErrUnavailable, err)
		}
		rec.Embedding = vec.Slice()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating identities: %w: %v", store.ErrUnavailable, err)
	}
	return records, nil
}

// EnableHNSW builds or loads the in-memory HNSW index over the stored
// identities. When indexPath is set and holds a fresh index (record count
// matches the table), the index loads from disk instead of rebuilding.
func (r *IdentityRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}

	idx := store.NewHNSWIndex()

	if indexPath != "" {
		if meta, err := store.LoadHNSWMetadata(indexPath); err == nil && meta.RecordCount == int64(count) {
			if err := idx.LoadWithRecords(indexPath); err == nil {
				r.setHNSW(idx, indexPath)
				return nil
			}
		}
		// Stale or unreadable index files get rebuilt below.
		_ = os.Remove(indexPath)
	}

	records, err := r.LoadAll(ctx)
	if err != nil {
		return err
	}
	if err := idx.BuildFromRecords(records); err != nil {
		return fmt.Errorf("building HNSW index: %w", err)
	}

	r.setHNSW(idx, indexPath)
	return nil
}

func (r *IdentityRepository) setHNSW(idx *store.HNSWIndex, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hnsw = idx
	r.hnswPath = path
	r.hnswEnabled = true
}

// HNSWCount returns the number of records in the HNSW index.
func (r *IdentityRepository) HNSWCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.hnswEnabled {
		return 0
	}
	return r.hnsw.Count()
}

// IsHNSWEnabled returns whether queries are served from the HNSW index.
func (r *IdentityRepository) IsHNSWEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hnswEnabled
}

// SaveHNSWIndex persists the index to the configured path, if any.
func (r *IdentityRepository) SaveHNSWIndex() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.hnswEnabled || r.hnswPath == "" {
		return nil
	}
	return r.hnsw.SaveWithRecords(r.hnswPath, store.HNSWIndexMetadata{
		RecordCount: int64(r.hnsw.Count()),
		BuildTime:   time.Now(),
	})
}
