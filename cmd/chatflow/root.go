package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/chatflow/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "chatflow",
	Short: "chatflow runs resumable conversational flows",
	Long: `chatflow walks a question graph one answer at a time, keeping progress on
the device and, optionally, in a remote store so it can resume anywhere.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("dir", cli.DefaultDir, "Directory holding device state")
	flags.String("local", "file", "Local store: file or sqlite")
	flags.Bool("debug", false, "Log lifecycle events at debug level")
	flags.String("log-level", "", "Log level (debug, info, warn, error); empty disables logging")

	flags.String("redis", "", "Redis address for the remote store")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database")
	flags.String("redis-prefix", "", "Redis key prefix")
	flags.String("dynamo-table", "", "DynamoDB table for the remote store")
	flags.String("postgres-dsn", "", "Postgres DSN for the remote store")
	flags.Duration("remote-ttl", 30*24*time.Hour, "Remote snapshot expiry (0 keeps them forever)")
	flags.Bool("metadata-only", false, "Send progress metadata, not conversations, to the remote store")
	flags.String("encryption-key", os.Getenv("CHATFLOW_ENCRYPTION_KEY"), "Base64 AES-256 key sealing remote snapshots")
	flags.StringSlice("pii", nil, "Answer keys masked before remote writes")
}

func storeOptions(cmd *cobra.Command) cli.StoreOptions {
	flags := cmd.Flags()
	var opts cli.StoreOptions
	opts.Dir, _ = flags.GetString("dir")
	opts.Local, _ = flags.GetString("local")
	opts.RedisAddr, _ = flags.GetString("redis")
	opts.RedisPassword, _ = flags.GetString("redis-password")
	opts.RedisDB, _ = flags.GetInt("redis-db")
	opts.RedisPrefix, _ = flags.GetString("redis-prefix")
	opts.DynamoTable, _ = flags.GetString("dynamo-table")
	opts.PostgresDSN, _ = flags.GetString("postgres-dsn")
	opts.RemoteTTL, _ = flags.GetDuration("remote-ttl")
	opts.MetadataOnly, _ = flags.GetBool("metadata-only")
	opts.EncryptionKey, _ = flags.GetString("encryption-key")
	opts.PIIPatterns, _ = flags.GetStringSlice("pii")
	return opts
}

// flowPath takes the flow file from --flow or the first argument.
func flowPath(cmd *cobra.Command, args []string) string {
	path, _ := cmd.Flags().GetString("flow")
	if !cmd.Flags().Changed("flow") && len(args) > 0 {
		path = args[0]
	}
	return path
}
