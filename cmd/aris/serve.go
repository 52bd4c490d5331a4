package main

import (
	"context"

	"github.com/aretw0/aris/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves the engine over HTTP:
  POST /v1/tasks   submit a task and wait for its result
  GET  /v1/tools   list the tool catalogue
  GET  /v1/events  stream step and tool events (SSE)
  GET  /health, /info, /metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		addr, _ := cmd.Flags().GetString("addr")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.Serve(sigCtx, cli.ServeOptions{
			ConfigPath: configPath,
			Addr:       addr,
			Debug:      debug,
		}, cli.StdStreams())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (overrides http.addr)")
}
