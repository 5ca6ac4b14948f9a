package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"quarry/internal/logger"
)

var (
	verbose bool
	log     = logger.New()
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Quarry - a containerized RocketMQ test harness",
	Long: `Quarry boots a NameServer + Broker RocketMQ topology in containers,
waits for topic routes to converge, and exposes stable host-side endpoints.
It also ships a small demo service and producer CLI for poking at the cluster.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLevel("debug")
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(topicCmd)
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
