package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "motioncoach",
	Short: "motioncoach - wearable motion recording, training and rep counting",
	Long: `motioncoach tracks a wearable motion recorder through discovery, connection
and recording, and routes each capture either into a movement's training set
or to the analyzer for rep counting.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to the interactive session when no subcommand is provided
		return runSession(cmd, args)
	},
}

func init() {
	// Global flags. An empty path searches ./motioncoach.yaml and /etc/motioncoach.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
