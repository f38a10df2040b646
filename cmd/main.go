package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trade-sentry",
	Short: "A CLI for managing the Trade Sentry services",
	Long:  `Trade Sentry watches external traders' feeds, diffs them into position lifecycle events, scores new positions and pushes qualifying alerts through a rate-limited notification queue.`,
}

func main() {

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'", err)
		os.Exit(1)
	}
}
