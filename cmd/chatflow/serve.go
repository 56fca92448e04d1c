package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/chatflow/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve [flow-file]",
	Short: "Serve a flow over HTTP",
	Long:  `Exposes sessions of the flow as a JSON API, with Prometheus metrics on /metrics.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd, args)
		addr, _ := cmd.Flags().GetString("addr")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.Serve(ctx, opts, addr, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addSessionFlags(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
}
