package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/weft/internal/cli"
	"github.com/aretw0/weft/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Weft runs visual workflow graphs",
	Long: `Weft executes node graphs built in a visual editor: trigger nodes watch the
bot backend for new files and fan each one out to notification and upload nodes.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to weft.yaml (default ./weft.yaml when present)")
	rootCmd.PersistentFlags().String("env-file", "", "Path to a dotenv file (default ./.env when present)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging of every engine event")
}

// loadConfig exports the --env-file variables and reads the --config file
// over the defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadEnv(envFile); err != nil {
		return config.Config{}, err
	}
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// buildEnvironment loads the configuration and wires the workflow.
func buildEnvironment(cmd *cobra.Command) (*cli.Environment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Build(cmd.Context(), cfg, cli.BuildOptions{Debug: debug})
}
