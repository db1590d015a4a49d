package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <method> [params-json]",
	Short: "Send one command to the host and print the reply",
	Long: `Sends a single command over the channel. Params are JSON in host units;
use "-" to read them from stdin. Example:

  cadbridge call set_parameters '{"items":[{"element_id":1001,"name":"Comments","value":"A"}]}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		method := args[0]

		var params json.RawMessage
		if len(args) == 2 {
			raw := []byte(args[1])
			if args[1] == "-" {
				var err error
				raw, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read params: %w", err)
				}
			}
			if !json.Valid(raw) {
				return fmt.Errorf("params must be valid JSON")
			}
			params = raw
		}

		bridge, err := newBridge(cfg, nil)
		if err != nil {
			return err
		}
		defer bridge.Close()

		ctx, stop := signalContext()
		defer stop()

		res, err := bridge.Send(ctx, method, params, 0)
		if err != nil {
			return err
		}

		var out bytes.Buffer
		if err := json.Indent(&out, res, "", "  "); err != nil {
			out.Reset()
			out.Write(res)
		}
		out.WriteByte('\n')
		_, err = out.WriteTo(os.Stdout)
		return err
	},
}

func init() {
	rootCmd.AddCommand(callCmd)
}
