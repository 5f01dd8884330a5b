package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	weftHTTP "github.com/aretw0/weft/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the graph editor API: graph editing, start/stop, trigger checks,
save/load, a Server-Sent Events stream of state changes and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		port := env.Config.HTTP.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		load, _ := cmd.Flags().GetBool("load")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if load {
			if _, err := env.Workflow.Load(ctx); err != nil {
				return err
			}
		}

		handler := weftHTTP.NewHandler(env.Workflow,
			weftHTTP.WithMetrics(env.Metrics.Handler()),
			weftHTTP.WithLogger(env.Logger),
		)

		err = weftHTTP.Serve(ctx, fmt.Sprintf(":%d", port), handler, env.Logger)
		if stopErr := env.Workflow.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			env.Logger.Error("failed to stop workflow", "error", stopErr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		env.Logger.Info("HTTP server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides http.port)")
	serveCmd.Flags().Bool("load", true, "Load the saved workflow snapshot on startup")
}
