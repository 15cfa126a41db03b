package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pbaptista/stink/pkg/stink/bot"
	"github.com/pbaptista/stink/pkg/stink/channels/whatsapp"
)

// newServeCmd creates the `stink serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bot daemon on WhatsApp",
		Long: `Start Stink as a daemon: connects to WhatsApp, processes inbound
messages through the session pipeline, and runs the daily check-in job.

Examples:
  stink serve
  stink serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w (run 'stink setup' to create one)", err)
	}

	logger := buildLogger(cmd, cfg)

	bot.ResolveAPIKey(cfg, logger)
	if cfg.API.APIKey == "" {
		logger.Warn("no API key configured, replies will use the fallback message")
	}

	// Store connectivity failure at startup is fatal.
	store, err := bot.OpenStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store at %s: %w", cfg.Database.Path, err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wa := whatsapp.New(cfg.Channels.WhatsApp, logger)
	if err := wa.Connect(ctx); err != nil {
		return fmt.Errorf("connect whatsapp: %w", err)
	}

	llm := bot.NewLLMClient(cfg, logger)
	b := bot.New(cfg, store, wa, llm, logger)

	var checkin *bot.CheckIn
	if cfg.CheckIn.Enabled {
		checkin = bot.NewCheckIn(b, logger)
		if err := checkin.Start(ctx); err != nil {
			logger.Error("check-in job failed to start", "error", err)
		}
	}

	go b.Run(ctx, wa.Receive())

	logger.Info("stink running, press Ctrl+C to stop",
		"name", cfg.Name,
		"trigger", cfg.Trigger,
		"model", cfg.Model,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		if checkin != nil {
			checkin.Stop()
		}
		cancel()
		_ = wa.Disconnect()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// resolveConfig loads the config from --config, a discovered file, or
// defaults when no file exists.
func resolveConfig(cmd *cobra.Command) (*bot.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = bot.FindConfigFile()
	}
	if path == "" {
		return bot.DefaultConfig(), nil
	}
	return bot.LoadConfigFromFile(path)
}

// buildLogger configures slog from the config and --verbose flag.
func buildLogger(cmd *cobra.Command, cfg *bot.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	level := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}
