package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/fraudwatch/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feed over a JSON HTTP API",
		Long: `Start an HTTP server exposing the feed, the alerts, synthetic and manual
submissions, a websocket event stream at /api/stream and Prometheus metrics
at /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appCfg, appOptions{manual: true, history: true})
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a.session, server.WithHistory(a.store), server.WithLogger(slog.Default()))
			return srv.Run(ctx, appCfg.Server.Addr)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
