package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var natsURL string

var rootCmd = &cobra.Command{
	Use:   "travelsim",
	Short: "Simulate guest devices against the travel tracker",
	Long: `travelsim drives the travel tracker the way a guest's phone would.

It can:
  - walk a guest between two points, publishing fixes over NATS
  - report a revoked location permission
  - watch a profile's engine events and push hints
  - mint API tokens for local testing
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", envOr("NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(walkCmd)
	rootCmd.AddCommand(denyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(tokenCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("travelsim version %s\n", version)
	},
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
