package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/presentation/graph"
	"github.com/aretw0/weft/pkg/domain"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [graph.json]",
	Short: "Export the workflow graph as a Mermaid diagram",
	Long:  `Reads a graph file, or the saved snapshot when no file is given, and prints a Mermaid diagram (graph LR).`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := readGraph(cmd, args)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

// readGraph returns the graph named by args, or the saved snapshot.
func readGraph(cmd *cobra.Command, args []string) (domain.Graph, error) {
	if len(args) > 0 {
		return weft.ReadGraphFile(args[0])
	}
	env, err := buildEnvironment(cmd)
	if err != nil {
		return domain.Graph{}, err
	}
	defer env.Close()

	loaded, err := env.Workflow.Load(cmd.Context())
	if err != nil {
		return domain.Graph{}, err
	}
	if !loaded {
		return domain.Graph{}, fmt.Errorf("no saved workflow")
	}
	return env.Workflow.Graph().Graph(), nil
}
