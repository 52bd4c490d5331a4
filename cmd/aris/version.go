package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/aris"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of aris",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "aris version %s\n", strings.TrimSpace(aris.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
