package main

import (
	"github.com/aretw0/aris/internal/cli"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools offered to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		jsonMode, _ := cmd.Flags().GetBool("json")

		app, err := cli.OpenApp(cmd.Context(), configPath, cli.StdStreams(), debug)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.PrintTools(app, cmd.OutOrStdout(), jsonMode)
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().Bool("json", false, "Print tools with their JSON Schemas")
}
