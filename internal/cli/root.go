package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command for the user-registry binary.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "user-registry",
		Short: "In-memory user registry over HTTP",
		Long: `user-registry serves a JSON API for creating, listing, reading,
updating and deleting users. Records live in memory; Redis, Kafka and
Postgres are optional and enabled through configuration.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to an env-style config file (default ./.env)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}
