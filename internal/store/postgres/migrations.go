package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Migrate creates the pgvector extension and the identities table for the
// given embedding dimensionality. Dimensionality and distance metric are
// fixed at store creation; reopening with a different dimension fails.
func (p *Pool) Migrate(ctx context.Context, embeddingDim int) error {
	if embeddingDim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", embeddingDim)
	}

	if _, err := p.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS store_meta (
			key   VARCHAR(64) PRIMARY KEY,
			value VARCHAR(255) NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create store_meta table: %w", err)
	}

	if err := p.checkStoredDim(ctx, embeddingDim); err != nil {
		return err
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS identities (
			id                VARCHAR(64) PRIMARY KEY,
			embedding         vector(%d) NOT NULL,
			first_seen        TIMESTAMP WITH TIME ZONE NOT NULL,
			last_seen         TIMESTAMP WITH TIME ZONE NOT NULL,
			total_detections  INTEGER NOT NULL DEFAULT 0,
			dominant_emotion  VARCHAR(64) NOT NULL DEFAULT '',
			avg_concentration DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at        TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, embeddingDim)
	if _, err := p.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create identities table: %w", err)
	}

	return p.CreateVectorIndex(ctx)
}

// checkStoredDim records the dimension on first migration and rejects a
// mismatch on subsequent opens.
func (p *Pool) checkStoredDim(ctx context.Context, embeddingDim int) error {
	var stored int
	err := p.db.QueryRowContext(ctx,
		"SELECT value::int FROM store_meta WHERE key = 'embedding_dim'").Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := p.db.ExecContext(ctx,
			"INSERT INTO store_meta (key, value) VALUES ('embedding_dim', $1)",
			fmt.Sprintf("%d", embeddingDim)); err != nil {
			return fmt.Errorf("failed to record embedding dimension: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read stored embedding dimension: %w", err)
	case stored != embeddingDim:
		return fmt.Errorf("store created with embedding dimension %d, configured %d", stored, embeddingDim)
	}
	return nil
}

// CreateVectorIndex ensures the ivfflat cosine index on identities exists.
// The in-memory HNSW index serves the hot path; this backs the SQL fallback
// queries.
func (p *Pool) CreateVectorIndex(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS identities_vector_idx
		ON identities USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}
