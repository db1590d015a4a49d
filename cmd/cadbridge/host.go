package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/cadbridge/internal/config"
	"github.com/aretw0/cadbridge/internal/telemetry"
	"github.com/aretw0/cadbridge/pkg/adapters/memory"
	"github.com/aretw0/cadbridge/pkg/batch"
	"github.com/aretw0/cadbridge/pkg/host"
	"github.com/aretw0/cadbridge/pkg/operations"
	"github.com/aretw0/cadbridge/pkg/wire"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var hostCmd = &cobra.Command{
	Use:   "host [document.yaml]",
	Short: "Run the reference command host",
	Long: `Serves an in-memory document over the command protocol, standing in for the
CAD add-in. With the tcp transport it listens on host.address; with websocket
it serves /ws on that address.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			cfg.Host.Document = args[0]
		}

		doc, err := memory.LoadDocument(cfg.Host.Document)
		if err != nil {
			return err
		}
		logger.Info("Document loaded", "path", cfg.Host.Document, "elements", len(doc.Elements("")))

		journal, closeJournal := newJournal(cfg)
		defer func() {
			if err := closeJournal(); err != nil {
				logger.Warn("Failed to close journal", "error", err)
			}
		}()

		var metrics *telemetry.Metrics
		reg := prometheus.NewRegistry()
		if cfg.Metrics {
			metrics = telemetry.New(reg)
		}

		framing, err := wire.ParseFraming(cfg.Host.Framing)
		if err != nil {
			return err
		}

		router := host.NewRouter(host.WithLogger(logger), host.WithMetrics(metrics), host.WithJournal(journal))
		executor := operations.NewExecutor(doc, batch.WithLogger(logger), batch.WithMetrics(metrics))
		operations.Mount(router, doc, executor, journal)
		srv := host.NewServer(router, host.WithLogger(logger), host.WithFraming(framing))

		ctx, stop := signalContext()
		defer stop()

		switch cfg.Host.Transport {
		case config.TransportTCP:
			ln, err := net.Listen("tcp", cfg.Host.Address)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Host.Address, err)
			}
			if cfg.Metrics {
				addr, _ := cmd.Flags().GetString("metrics-addr")
				go serveMetrics(reg, addr)
			}
			return srv.Serve(ctx, ln)
		default:
			r := chi.NewRouter()
			r.Handle("/ws", srv.WebSocketHandler())
			if cfg.Metrics {
				r.Handle("/metrics", telemetry.Handler(reg))
			}
			defer srv.Close()
			err := runHTTP(&http.Server{
				Addr:              cfg.Host.Address,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			})
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	},
}

func serveMetrics(reg *prometheus.Registry, addr string) {
	logger.Info("Metrics listening", "address", addr)
	srv := &http.Server{Addr: addr, Handler: telemetry.Handler(reg), ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Warn("Metrics server stopped", "error", err)
	}
}

func init() {
	rootCmd.AddCommand(hostCmd)
	hostCmd.Flags().String("metrics-addr", ":9090", "Metrics address for the tcp transport")
}
