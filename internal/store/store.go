// Package store provides durable keyed storage of identity embedding vectors
// with nearest-neighbor retrieval under cosine distance.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable signals that the backing store cannot serve a query or
// write. Callers fall back to a linear scan of the in-memory registry
// instead of treating this as fatal.
var ErrUnavailable = errors.New("vector store unavailable")

// Metadata is the denormalized per-identity summary kept alongside the
// embedding vector for fast external queries. The full emotion and
// concentration history lives only in the registry.
type Metadata struct {
	FirstSeen        time.Time
	LastSeen         time.Time
	TotalDetections  int
	DominantEmotion  string
	AvgConcentration float64
}

// Neighbor is one nearest-neighbor query result.
type Neighbor struct {
	ID       string
	Distance float64
}

// Record is a stored identity vector with its summary metadata.
type Record struct {
	ID        string
	Embedding []float32
	Meta      Metadata
}

// VectorStore is the persistence contract for identity embeddings.
//
// Upsert writes or overwrites a vector and its metadata keyed by id; a nil
// embedding refreshes metadata only and never rewrites the stored vector.
// QueryNearest returns up to k results ordered by ascending cosine distance
// and succeeds with an empty result on an empty store. DeleteAll clears
// every stored vector and is used only by the reset operation.
type VectorStore interface {
	Upsert(ctx context.Context, id string, embedding []float32, meta Metadata) error
	QueryNearest(ctx context.Context, embedding []float32, k int) ([]Neighbor, error)
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
