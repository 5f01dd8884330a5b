package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/weft/pkg/registry"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the node types offered by the editor palette",
	RunE: func(cmd *cobra.Command, args []string) error {
		cats := registry.DefaultCatalog().Categories()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cats)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, c := range cats {
			fmt.Fprintf(tw, "%s\n", c.Name)
			for _, item := range c.Items {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", item.Type, item.Label, item.Description)
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().Bool("json", false, "Print the catalog as JSON")
}
