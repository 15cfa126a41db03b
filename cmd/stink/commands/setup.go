package commands

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/pbaptista/stink/pkg/stink/bot"
)

// newSetupCmd creates the `stink setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard to create your initial config.yaml.
Asks for the bot name, trigger phrase, model, and API key. When the OS
keyring is available the API key is stored there instead of the file.

Examples:
  stink setup`,
		RunE: runSetup,
	}
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg := bot.DefaultConfig()

	apiKey := ""
	useKeyring := bot.KeyringAvailable()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bot name").
				Description("How the bot introduces itself.").
				Value(&cfg.Name),
			huh.NewInput().
				Title("Trigger phrase").
				Description("New users must send this phrase to start onboarding.").
				Value(&cfg.Trigger),
			huh.NewInput().
				Title("Model").
				Description("Chat completion model id, e.g. gpt-4o-mini.").
				Value(&cfg.Model),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API key").
				Description("OpenAI-compatible API key. Leave empty to set later via STINK_API_KEY.").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("API base URL").
				Description("Leave empty for the OpenAI default.").
				Value(&cfg.API.BaseURL),
			huh.NewInput().
				Title("Database path").
				Value(&cfg.Database.Path),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup wizard: %w", err)
	}

	if apiKey != "" {
		if useKeyring {
			if err := bot.StoreKeyring("api_key", apiKey); err != nil {
				fmt.Printf("Keyring unavailable (%v), storing key reference in config instead.\n", err)
				cfg.API.APIKey = apiKey
			} else {
				fmt.Println("API key stored in the OS keyring.")
			}
		} else {
			cfg.API.APIKey = apiKey
		}
	}

	path := "config.yaml"
	if err := bot.SaveConfigToFile(cfg, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Printf("Config written to %s. Run 'stink serve' to start.\n", path)
	return nil
}
