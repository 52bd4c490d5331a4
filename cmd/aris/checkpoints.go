package main

import (
	"github.com/aretw0/aris/internal/cli"
	"github.com/spf13/cobra"
)

var checkpointsCmd = &cobra.Command{
	Use:     "checkpoints",
	Aliases: []string{"cp"},
	Short:   "Manage persisted task checkpoints",
	Long:    `List, inspect, and remove checkpoints kept by the configured backend.`,
}

var checkpointsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List checkpointed tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *cli.App) error {
			return cli.ListCheckpoints(cmd.Context(), app, cmd.OutOrStdout())
		})
	},
}

var checkpointsInspectCmd = &cobra.Command{
	Use:   "inspect <task-id>",
	Short: "Print the stored state of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *cli.App) error {
			return cli.InspectCheckpoint(cmd.Context(), app, args[0], false, cmd.OutOrStdout())
		})
	},
}

var checkpointsRmCmd = &cobra.Command{
	Use:   "rm <task-id>...",
	Short: "Remove one or more checkpoints",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *cli.App) error {
			return cli.RemoveCheckpoints(cmd.Context(), app, args, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(checkpointsCmd)
	checkpointsCmd.AddCommand(checkpointsLsCmd)
	checkpointsCmd.AddCommand(checkpointsInspectCmd)
	checkpointsCmd.AddCommand(checkpointsRmCmd)
}

func withApp(cmd *cobra.Command, fn func(app *cli.App) error) error {
	configPath, debug := globalFlags(cmd)
	app, err := cli.OpenApp(cmd.Context(), configPath, cli.StdStreams(), debug)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
