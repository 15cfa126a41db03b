// Package commands implements the Stink CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root CLI command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stink",
		Short: "Stink - a pocket companion bot over WhatsApp",
		Long: `Stink is a conversational companion bot. It onboards users over
WhatsApp, keeps light chat history, and checks in on recently active
users once a day.

Examples:
  stink serve
  stink chat
  stink setup
  stink config show`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newSetupCmd(),
		newConfigCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
