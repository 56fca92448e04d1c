package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/chatflow/internal/cli"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage snapshots stored on this device",
	Long:  `List, inspect, and remove the conversation snapshots held by the local store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := cli.OpenLocalStore(storeOptions(cmd))
		if err != nil {
			return err
		}
		defer closeStore()

		scenario, _ := cmd.Flags().GetString("scenario")
		keys, err := cli.ListSessions(store, scenario)
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}
		if len(keys) == 0 {
			fmt.Println("No stored sessions found.")
			return nil
		}
		fmt.Println("Stored Sessions:")
		for _, k := range keys {
			fmt.Println("- " + k)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <state-key>",
	Short: "Print a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := cli.OpenLocalStore(storeOptions(cmd))
		if err != nil {
			return err
		}
		defer closeStore()

		out, err := cli.InspectSession(store, args[0])
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <state-key>...",
	Short: "Remove one or more stored sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := cli.OpenLocalStore(storeOptions(cmd))
		if err != nil {
			return err
		}
		defer closeStore()

		failed := 0
		for _, key := range args {
			if err := cli.RemoveSession(store, key); err != nil {
				fmt.Printf("Error removing '%s': %v\n", key, err)
				failed++
				continue
			}
			fmt.Printf("Removed session '%s'\n", key)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d sessions could not be removed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd, sessionInspectCmd, sessionRmCmd)
	sessionLsCmd.Flags().String("scenario", "", "Only list keys of this scenario")
}
