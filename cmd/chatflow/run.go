package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/chatflow/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run [flow-file]",
	Short: "Chat through a flow in the terminal",
	Long: `Opens the user's session for the flow, resuming from the freshest snapshot
on this device or the remote store, and asks its questions in order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd, args)
		if !opts.Headless && !term.IsTerminal(int(os.Stdin.Fd())) {
			opts.Headless = true
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		err := cli.RunSession(ctx, opts, os.Stdin, os.Stdout)
		if sig := ctx.Signal(); sig != nil {
			fmt.Fprintf(os.Stderr, "\nInterrupted by %v\n", sig)
		}
		return err
	},
}

func runOptions(cmd *cobra.Command, args []string) cli.RunOptions {
	flags := cmd.Flags()
	opts := cli.RunOptions{
		FlowPath: flowPath(cmd, args),
		Store:    storeOptions(cmd),
	}
	opts.UserID, _ = flags.GetString("user")
	opts.Scenario, _ = flags.GetString("scenario")
	opts.Session, _ = flags.GetString("session")
	opts.SaveStrategy, _ = flags.GetString("save-strategy")
	opts.RemoteTimeout, _ = flags.GetDuration("remote-timeout")
	opts.Headless, _ = flags.GetBool("headless")
	opts.Debug, _ = flags.GetBool("debug")
	opts.LogLevel, _ = flags.GetString("log-level")
	return opts
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("flow", "f", "flow.yaml", "Flow file (YAML or JSON)")
	cmd.Flags().StringP("user", "u", "", "User id; empty runs as a guest on this device")
	cmd.Flags().String("scenario", "", "Scenario namespace for state keys")
	cmd.Flags().String("session", "", "Session request: empty or auto, new, or an explicit id")
	cmd.Flags().String("save-strategy", "", "When to persist: always (default) or on-end-only")
	cmd.Flags().Duration("remote-timeout", 0, "Deadline for each remote store call")
}

func init() {
	rootCmd.AddCommand(runCmd)
	addSessionFlags(runCmd)
	runCmd.Flags().Bool("headless", false, "Run in headless mode (no banner, plain output)")
}
