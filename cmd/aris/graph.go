package main

import (
	"github.com/aretw0/aris/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [task-id]",
	Short: "Export the workflow graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the configured workflow. Given a task
ID, the diagram highlights the steps that checkpointed run went through.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		app, err := cli.OpenApp(cmd.Context(), configPath, cli.StdStreams(), debug)
		if err != nil {
			return err
		}
		defer app.Close()

		if len(args) == 1 {
			return cli.InspectCheckpoint(cmd.Context(), app, args[0], true, cmd.OutOrStdout())
		}
		return cli.PrintGraph(app, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
