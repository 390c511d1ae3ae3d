package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jromero/facetrack/internal/config"
	"github.com/jromero/facetrack/internal/store"
	"github.com/jromero/facetrack/internal/tracker"
)

var replayCmd = &cobra.Command{
	Use:   "replay <observations.jsonl>",
	Short: "Re-ingest a recorded observation stream",
	Long: `Replay a recorded observation stream through the identity resolver.

The input file holds one JSON observation per line, in the same shape the
POST /api/v1/observations endpoint accepts. Replay runs against its own
in-memory store, prints the resulting fleet summary, and can export the
full session snapshot.

Example:
  facetrack replay session.jsonl --export results.json`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().String("export", "", "Write the session snapshot to this file after replay")
}

// countLines counts newline-delimited records so the progress bar has a total.
func countLines(path string) (int, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator input
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	return count, scanner.Err()
}

func runReplay(cmd *cobra.Command, args []string) error {
	path := args[0]
	exportPath := mustGetString(cmd, "export")

	cfg := config.Load()
	ctx := context.Background()

	total, err := countLines(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	f, err := os.Open(path) //nolint:gosec // path is operator input
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	trk := tracker.New(store.NewMemoryStore(), trackerOptions(cfg))
	bar := progressbar.Default(int64(total), "replaying")

	var malformed int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var obs tracker.Observation
		if err := json.Unmarshal(line, &obs); err != nil {
			malformed++
			_ = bar.Add(1)
			continue
		}
		if _, err := trk.Resolve(ctx, obs); err != nil {
			if tracker.IsMalformed(err) || errors.Is(err, tracker.ErrPersistenceDegraded) {
				if tracker.IsMalformed(err) {
					malformed++
				}
				_ = bar.Add(1)
				continue
			}
			return fmt.Errorf("resolving observation: %w", err)
		}
		_ = bar.Add(1)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	summary := trk.FleetSummary()
	fmt.Printf("\nIdentities: %d\n", summary.TotalIdentities)
	fmt.Printf("Detections: %d\n", summary.TotalDetections)
	fmt.Printf("Average concentration: %.1f\n", summary.AvgConcentration)
	if malformed > 0 {
		fmt.Printf("Malformed observations skipped: %d\n", malformed)
	}

	labels := make([]string, 0, len(summary.EmotionDistribution))
	for label := range summary.EmotionDistribution {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Printf("  %-10s %d\n", label, summary.EmotionDistribution[label])
	}

	if exportPath != "" {
		written, err := trk.ExportSnapshot(exportPath, cfg.Web.ExportDir)
		if err != nil {
			return fmt.Errorf("exporting snapshot: %w", err)
		}
		fmt.Printf("Session snapshot written to %s\n", written)
	}
	return nil
}
