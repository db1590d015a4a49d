package main

import (
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/aretw0/cadbridge/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the bridge operations as MCP tools so AI agents can drive the host.
Tool arguments are in millimeters and degrees.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("mcp-transport") {
			cfg.MCP.Transport, _ = cmd.Flags().GetString("mcp-transport")
		}
		if cmd.Flags().Changed("port") {
			cfg.MCP.Port, _ = cmd.Flags().GetInt("port")
		}

		bridge, err := newBridge(cfg, nil)
		if err != nil {
			return err
		}
		defer bridge.Close()

		srv := mcp.NewServer(bridge, mcp.WithLogger(logger), mcp.WithTimeout(cfg.Channel.RequestTimeout))

		switch cfg.MCP.Transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting cadbridge MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			ctx, stop := signalContext()
			defer stop()

			logger.Info("Starting cadbridge MCP Server (SSE)", "port", cfg.MCP.Port)
			if err := srv.ServeSSE(ctx, cfg.MCP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return errors.New("unknown MCP transport (supported: stdio, sse)")
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("mcp-transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}
