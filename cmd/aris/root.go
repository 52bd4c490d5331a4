package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/aris/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aris",
	Short: "aris runs research and tool-augmented LLM tasks",
	Long: `aris drives a language model through a fixed workflow of search, retrieval,
generation, tool execution, validation and synthesis. Configuration comes from
aris.yaml and ARIS_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// A failed task has already been reported.
		if !errors.Is(err, cli.ErrTaskFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default aris.yaml when present)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log at debug level to stderr")
}

func globalFlags(cmd *cobra.Command) (configPath string, debug bool) {
	configPath, _ = cmd.Flags().GetString("config")
	debug, _ = cmd.Flags().GetBool("debug")
	return configPath, debug
}
