package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facetrack",
	Short: "Identity resolution engine for face-embedding streams",
	Long: `FaceTrack resolves face-embedding observations from a live video
pipeline into stable identities and aggregates per-identity emotion and
concentration statistics over a session.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()
}
