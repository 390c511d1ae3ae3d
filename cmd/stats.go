package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jromero/facetrack/internal/config"
	"github.com/jromero/facetrack/internal/store/postgres"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print identity statistics from the vector store",
	Long: `Print the persisted identity summaries from PostgreSQL.

This reads the denormalized metadata cache, so it works without a running
server. Full emotion and concentration histories live only in a running
session; use the /api/v1/export endpoint for those.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	defer pool.Close()

	repo := postgres.NewIdentityRepository(pool, cfg.Tracker.EmbeddingDim)
	records, err := repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading identities: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No identities stored.")
		return nil
	}

	fmt.Printf("Identities: %d\n\n", len(records))
	for _, rec := range records {
		fmt.Printf("%s\n", rec.ID)
		fmt.Printf("  first seen:    %s\n", rec.Meta.FirstSeen.Format("2006-01-02 15:04:05"))
		fmt.Printf("  last seen:     %s\n", rec.Meta.LastSeen.Format("2006-01-02 15:04:05"))
		fmt.Printf("  detections:    %d\n", rec.Meta.TotalDetections)
		fmt.Printf("  dominant:      %s\n", rec.Meta.DominantEmotion)
		fmt.Printf("  concentration: %.1f\n", rec.Meta.AvgConcentration)
	}
	return nil
}
