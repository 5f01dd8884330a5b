package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aretw0/weft/internal/cli"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [graph.json]",
	Short: "Run a workflow in the foreground",
	Long: `Starts the workflow from a graph file, or from the saved snapshot when no file
is given, and prints every node status change until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := cli.RunOptions{Output: cmd.OutOrStdout()}
		if len(args) > 0 {
			opts.GraphPath = args[0]
		}
		opts.Save, _ = cmd.Flags().GetBool("save")
		opts.Once, _ = cmd.Flags().GetBool("once")
		opts.SkipValidation, _ = cmd.Flags().GetBool("force")
		opts.Quiet, _ = cmd.Flags().GetBool("quiet")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		if err := cli.Run(sigCtx, env, opts); err != nil {
			return err
		}
		if sig := sigCtx.Signal(); sig != nil {
			env.Logger.Info("interrupted", "signal", sig.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("save", false, "Save the graph as the workflow snapshot before starting")
	runCmd.Flags().Bool("once", false, "Stop as soon as no execution is in flight")
	runCmd.Flags().Bool("force", false, "Start even when validation reports problems")
	runCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
