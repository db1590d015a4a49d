package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/cadbridge/internal/config"
	"github.com/aretw0/cadbridge/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cadbridge",
	Short: "cadbridge relays agent commands to a CAD authoring host",
	Long: `cadbridge lets an AI agent drive a CAD host through batched, transactional
operations. It speaks to the host over one persistent connection and converts
caller units (mm, degrees) into host units (feet, radians).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded

		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-json") {
			cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
		}
		if cmd.Flags().Changed("host") {
			cfg.Host.Address, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("transport") {
			cfg.Host.Transport, _ = cmd.Flags().GetString("transport")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Logs always go to stderr: stdout may carry the MCP stdio protocol.
		logger = logging.NewWithOptions(logging.Options{
			Level:  cfg.Log.Level,
			JSON:   cfg.Log.JSON,
			Output: os.Stderr,
		})
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "cadbridge.yaml", "Path to the configuration file (optional)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs")
	rootCmd.PersistentFlags().String("host", "", "Host address (tcp transport), overrides host.address")
	rootCmd.PersistentFlags().String("transport", "", "Host transport: tcp or websocket, overrides host.transport")
}
