package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nestful",
		Short: "Nested-resource REST dispatch engine and demo API",
		Long: `Nestful serves REST resources addressable by arbitrary unique
attributes, with nested resources mounted under a parent's detail URI
and parent-aware authorization. The bundled demo API exposes users,
entries, entry stats, and comment threads.`,
		SilenceUsage: true,
	}

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
