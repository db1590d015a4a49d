package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/cadbridge"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cadbridge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cadbridge version %s\n", strings.TrimSpace(cadbridge.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
