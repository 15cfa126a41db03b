package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pbaptista/stink/pkg/stink/bot"
)

// newConfigCmd creates the `stink config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bot configuration",
		Long: `Inspect and update the Stink configuration.

Examples:
  stink config show
  stink config set-key`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetKeyCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			// Never print the key itself.
			if cfg.API.APIKey != "" {
				cfg.API.APIKey = "(set)"
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key",
		Short: "Store the API key in the OS keyring",
		Long:  `Reads the API key from the STINK_API_KEY environment variable and stores it in the OS keyring.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			key := os.Getenv("STINK_API_KEY")
			if key == "" {
				return fmt.Errorf("STINK_API_KEY is not set")
			}
			if err := bot.StoreKeyring("api_key", key); err != nil {
				return fmt.Errorf("store key in keyring: %w", err)
			}
			fmt.Println("API key stored in the OS keyring.")
			return nil
		},
	}
}
