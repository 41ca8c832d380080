package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/xtreamer/internal/app"
	internalhttp "github.com/jmylchreest/xtreamer/internal/http"
	"github.com/jmylchreest/xtreamer/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the xtreamer HTTP bridge",
	Long: `Start the HTTP bridge that exposes login, browsing, search, favorites and
stream URLs as a JSON API.

The server provides:
- REST API under /api/v1
- Server-sent state updates at /api/v1/events
- Health checks at /health and /livez
- Prometheus metrics at /metrics
- OpenAPI documentation at /docs

The panel login configured for the CLI is submitted on startup when a host
is set; otherwise clients log in with POST /api/v1/login.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// --host and --port already select the panel.
	serveCmd.Flags().String("bind", "", "address to bind to (default 0.0.0.0)")
	serveCmd.Flags().Int("listen-port", 0, "port to listen on (default 8787)")
	serveCmd.Flags().StringSlice("cors-origin", nil, "allowed CORS origin, may be repeated")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("bind"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("listen-port"))
	_ = viper.BindPFlag("server.cors_origins", serveCmd.Flags().Lookup("cors-origin"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if cfg.Panel.Host != "" {
			if _, err := a.Connect(ctx); err != nil {
				logger.Warn("initial panel login failed",
					slog.String("host", cfg.Panel.Host),
					slog.String("error", err.Error()),
				)
			}
		}

		srv := internalhttp.NewServer(cfg.Server, a, logger, version.Short())
		logger.Info("starting server",
			slog.String("address", cfg.Server.Address()),
			slog.String("version", version.Short()),
		)
		if err := srv.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})
}
