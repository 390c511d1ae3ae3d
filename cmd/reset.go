package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jromero/facetrack/internal/config"
	"github.com/jromero/facetrack/internal/store/postgres"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all identities from the vector store",
	Long: `Clear every identity from the PostgreSQL vector store and remove
persisted HNSW index files.

This operates on the store directly and is intended for between-session
cleanup while the server is stopped. A running server should be reset
through POST /api/v1/reset instead, which clears its in-memory registry
in the same step.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func confirmAction(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// removeHNSWFiles deletes the persisted index and its sidecars, if any.
func removeHNSWFiles(path string) {
	if path == "" {
		return
	}
	for _, p := range []string{path, path + ".meta", path + ".records"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: failed to remove %s: %v\n", p, err)
		}
	}
}

func runReset(cmd *cobra.Command, args []string) error {
	skipConfirm := mustGetBool(cmd, "yes")

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
	count, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting identities: %w", err)
	}

	if count == 0 {
		fmt.Println("Vector store is already empty.")
		removeHNSWFiles(cfg.Database.HNSWIndexPath)
		return nil
	}

	if !skipConfirm && !confirmAction(fmt.Sprintf("Delete all %d identit(ies) from the vector store? [y/N]: ", count)) {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing vector store: %w", err)
	}
	removeHNSWFiles(cfg.Database.HNSWIndexPath)

	fmt.Printf("Done! Removed %d identit(ies).\n", count)
	return nil
}
