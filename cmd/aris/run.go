package main

import (
	"strings"

	"github.com/aretw0/aris/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Run one task and print the answer",
	Long: `Submits a query to the engine and prints the final answer. Research jobs
search and read sources first. A checkpointed task can be continued with --resume.`,
	Example: `  aris run "What is the Raft consensus algorithm?"
  aris run --job research "state of WebAssembly runtimes"
  aris run --job research --output article.md "history of Paxos"
  aris run --resume 3f2c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		jobType, _ := cmd.Flags().GetString("job")
		resume, _ := cmd.Flags().GetString("resume")
		output, _ := cmd.Flags().GetString("output")
		jsonMode, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")

		return cli.Execute(cli.RunOptions{
			ConfigPath: configPath,
			Query:      strings.Join(args, " "),
			JobType:    jobType,
			Resume:     resume,
			Output:     output,
			JSON:       jsonMode,
			Quiet:      quiet,
			Debug:      debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("job", "j", "query", "Job type: 'query' or 'research'")
	runCmd.Flags().String("resume", "", "Continue the checkpointed task with this ID")
	runCmd.Flags().StringP("output", "o", "", "Write the answer and its sources to this markdown file")
	runCmd.Flags().Bool("json", false, "Print the result as JSON")
	runCmd.Flags().BoolP("quiet", "q", false, "Print only the answer")
}
