package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jromero/facetrack/internal/config"
	"github.com/jromero/facetrack/internal/store"
	"github.com/jromero/facetrack/internal/store/postgres"
	"github.com/jromero/facetrack/internal/tracker"
	"github.com/jromero/facetrack/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the identity resolution server",
	Long: `Start the FaceTrack server.
The server accepts face-embedding observations from the video pipeline,
resolves them into identities, and serves per-identity and fleet-wide
statistics over a REST API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("in-memory", false, "Run without PostgreSQL, keeping vectors in memory only")
}

// trackerOptions maps config onto tracker options.
func trackerOptions(cfg *config.Config) tracker.Options {
	return tracker.Options{
		EmbeddingDim:      cfg.Tracker.EmbeddingDim,
		DistanceThreshold: cfg.Tracker.DistanceThreshold,
		CandidateK:        cfg.Tracker.CandidateK,
		MaxHistory:        cfg.Tracker.MaxHistory,
		Labels:            cfg.Emotions.Labels,
	}
}

// initPostgresStore connects, migrates, builds the HNSW index, and hydrates
// the tracker with persisted identities.
func initPostgresStore(ctx context.Context, cfg *config.Config) (*postgres.IdentityRepository, *postgres.Pool, error) {
	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}
	if err := pool.Migrate(ctx, cfg.Tracker.EmbeddingDim); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repo := postgres.NewIdentityRepository(pool, cfg.Tracker.EmbeddingDim)

	if cfg.Database.HNSWIndexPath != "" {
		fmt.Printf("Loading HNSW index from %s...\n", cfg.Database.HNSWIndexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for identity matching...\n")
	}
	if err := repo.EnableHNSW(ctx, cfg.Database.HNSWIndexPath); err != nil {
		fmt.Printf("Warning: Failed to build HNSW index: %v\n", err)
		fmt.Printf("Identity matching will use PostgreSQL queries (slower)\n")
	} else {
		fmt.Printf("HNSW index ready with %d identities\n", repo.HNSWCount())
	}

	return repo, pool, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()
	inMemory := mustGetBool(cmd, "in-memory") || cfg.Database.URL == ""

	var (
		vs   store.VectorStore
		repo *postgres.IdentityRepository
	)
	if inMemory {
		fmt.Printf("Using in-memory vector store (identities will not survive restart)\n")
		vs = store.NewMemoryStore()
	} else {
		var pool *postgres.Pool
		var err error
		repo, pool, err = initPostgresStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		vs = repo
	}

	trk := tracker.New(vs, trackerOptions(cfg))

	// Carry persisted identities into the new session so returning faces
	// keep their ids across restarts.
	if repo != nil {
		records, err := repo.LoadAll(ctx)
		if err != nil {
			fmt.Printf("Warning: failed to load persisted identities: %v\n", err)
		} else if len(records) > 0 {
			trk.Hydrate(records)
			fmt.Printf("Restored %d identities from the vector store\n", len(records))
		}
	}

	server := web.NewServer(cfg, trk)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		if repo != nil {
			if err := repo.SaveHNSWIndex(); err != nil {
				fmt.Printf("Warning: failed to save HNSW index: %v\n", err)
			} else if cfg.Database.HNSWIndexPath != "" {
				fmt.Println("HNSW index saved to disk")
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting FaceTrack API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
