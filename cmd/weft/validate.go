package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/weft"
)

var validateCmd = &cobra.Command{
	Use:   "validate [graph.json]",
	Short: "Check the graph for consistency",
	Long: `Reports duplicate ids, unknown node types, invalid node configs, dangling
edges and nodes no source node can reach.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		wf := env.Workflow
		if len(args) > 0 {
			g, err := weft.ReadGraphFile(args[0])
			if err != nil {
				return err
			}
			wf.Graph().Replace(g)
		} else if loaded, err := wf.Load(cmd.Context()); err != nil {
			return err
		} else if !loaded {
			return fmt.Errorf("no saved workflow")
		}

		if err := wf.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Graph is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
