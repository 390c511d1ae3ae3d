package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export the running session to a snapshot file",
	Long: `Ask a running FaceTrack server to write its full session snapshot
(all identities with history plus the fleet summary) to a file.

The server address comes from FACETRACK_API_URL (default
http://localhost:8080). Without a path argument the server picks a
timestamped filename in its export directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func apiURL() string {
	if url := os.Getenv("FACETRACK_API_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func runExport(cmd *cobra.Command, args []string) error {
	body := map[string]string{}
	if len(args) == 1 {
		body["path"] = args[0]
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(apiURL()+"/api/v1/export", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("requesting export (is the server running?): %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("export failed: %s", result.Error)
	}

	fmt.Printf("Session snapshot written to %s\n", result.Path)
	return nil
}
