package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "queued",
		Short: "Job queue control plane for the render farm",
		Long: `Queued tracks submitted renders, hands their jobs out to render
workers, and reports how much work is waiting so the farm can scale.

Renders arrive as events on the bus and are expanded into frame/slice
jobs on demand: a worker asks for its next job over request/reply, and
terminal job events move the render through its lifecycle until the
queue row is deleted.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(popCmd())
	rootCmd.AddCommand(targetCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("queued v0.1.0")
		},
	}
}
