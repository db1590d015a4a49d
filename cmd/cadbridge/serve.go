package main

import (
	"context"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/cadbridge/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP command relay",
	Long: `Relays POST /v1/commands/{method} to the host over the command channel.
Bodies are sent as params in host units; replies are returned as they come.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.HTTP.Address, _ = cmd.Flags().GetString("addr")
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		bridge, err := newBridge(cfg, reg)
		if err != nil {
			return err
		}
		defer bridge.Close()

		opts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithTimeout(cfg.Channel.RequestTimeout),
		}
		if cfg.Metrics {
			opts = append(opts, httpAdapter.WithMetrics(reg))
		}

		srv := &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           httpAdapter.NewHandler(bridge, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return runHTTP(srv)
	},
}

// runHTTP serves until SIGINT/SIGTERM, then shuts down gracefully.
func runHTTP(srv *http.Server) error {
	ctx, stop := signalContext()
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "error", err)
			return srv.Close()
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
}
