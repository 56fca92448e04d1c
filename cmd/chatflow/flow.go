package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/chatflow/internal/cli"
	"github.com/aretw0/chatflow/internal/presentation/graph"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowhash"
)

var hashCmd = &cobra.Command{
	Use:   "hash [flow-file]",
	Short: "Print the content hash of a flow",
	Long:  `Snapshots saved under a different hash are discarded when a user returns.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := cli.LoadFlow(flowPath(cmd, args))
		if err != nil {
			return err
		}
		fmt.Println(flowhash.Sum(g))
		return nil
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph [flow-file]",
	Short: "Export the flow as a Mermaid diagram",
	Long:  `Outputs a Mermaid diagram (graph TD). With --session the stored progress is highlighted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := cli.LoadFlow(flowPath(cmd, args))
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if key, _ := cmd.Flags().GetString("session"); key != "" {
			state, err := loadLocalState(cmd, key)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFor(state)
		}

		fmt.Print(graph.GenerateMermaid(g, overlay))
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [flow-file]",
	Short: "Check the flow for consistency",
	Long:  `Reports dead links, broken expressions and nodes unreachable from the start node.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := cli.LoadFlow(flowPath(cmd, args))
		if err != nil {
			return err
		}
		report, err := cli.ValidateFlow(g)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		for _, name := range report.HostRules {
			fmt.Fprintf(os.Stderr, "note: rule '%s' must be registered by the host\n", name)
		}
		if strict, _ := cmd.Flags().GetBool("strict"); strict {
			if err := report.Strict(); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
		}
		for _, id := range report.Unreachable {
			fmt.Fprintf(os.Stderr, "warning: node '%s' is unreachable\n", id)
		}
		fmt.Println("Flow is valid!")
		return nil
	},
}

func loadLocalState(cmd *cobra.Command, key string) (*domain.ChatState, error) {
	store, closeStore, err := cli.OpenLocalStore(storeOptions(cmd))
	if err != nil {
		return nil, err
	}
	defer closeStore()

	raw, ok, err := store.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("session %q: %w", key, domain.ErrSnapshotNotFound)
	}
	return domain.DecodeState(raw)
}

func init() {
	for _, c := range []*cobra.Command{hashCmd, graphCmd, validateCmd} {
		c.Flags().StringP("flow", "f", "flow.yaml", "Flow file (YAML or JSON)")
		rootCmd.AddCommand(c)
	}
	graphCmd.Flags().String("session", "", "State key whose progress to highlight")
	validateCmd.Flags().Bool("strict", false, "Fail on unreachable nodes")
}
