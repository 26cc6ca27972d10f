package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/config"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/httpapi"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/logging"
)

var serveAddr string

// serveCmd implements "sentinel serve".
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with live run events and metrics",
	Long: `Start the engine behind an HTTP API. Runs are started with POST /v1/runs,
progress streams from GET /v1/events as server-sent events, and Prometheus
metrics are exposed on /metrics. SIGINT or SIGTERM shuts down gracefully.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, err := loadValidConfig(cmd, func(o *config.CLIOverrides) {
			if cmd.Flags().Changed("addr") {
				addr := serveAddr
				o.Addr = &addr
			}
		})
		if err != nil {
			return err
		}
		cfg := resolved.Config

		rt := newRuntime(cfg)
		defer rt.Close()

		srv := httpapi.New(rt.engine, rt.findings, rt.conns,
			httpapi.WithLogger(logging.New(logging.ComponentHTTP)),
			httpapi.WithMetrics(rt.metrics),
		)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		rt.logger.Info("serving", "addr", cfg.Server.Addr, "config", resolved.Path)
		return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout.Duration)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr and SENTINEL_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
