package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pbaptista/stink/pkg/stink/bot"
	"github.com/pbaptista/stink/pkg/stink/channels"
)

// consoleSenderID is the synthetic identifier used for REPL sessions.
// It goes through the same onboarding and history as a real sender.
const consoleSenderID = "console@local"

// newChatCmd creates the `stink chat` command, a local REPL that runs
// the full session pipeline without a WhatsApp connection.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the bot locally",
		Long: `Starts a local REPL against the real pipeline: onboarding, mood
classification, history, and generation all behave as they would over
WhatsApp. Start by sending the trigger phrase.

Examples:
  stink chat`,
		RunE: runChat,
	}
}

// consoleSender prints outbound messages to the terminal.
type consoleSender struct{}

func (consoleSender) Send(_ context.Context, _ string, msg *channels.OutgoingMessage) error {
	fmt.Printf("stink> %s\n", msg.Content)
	return nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w (run 'stink setup' to create one)", err)
	}
	// No pacing needed when printing to a terminal.
	cfg.Reply.ChunkDelay = 0

	logger := buildLogger(cmd, cfg)
	bot.ResolveAPIKey(cfg, logger)

	store, err := bot.OpenStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store at %s: %w", cfg.Database.Path, err)
	}
	defer store.Close()

	llm := bot.NewLLMClient(cfg, logger)
	b := bot.New(cfg, store, consoleSender{}, llm, logger)

	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("Local chat. Say %q to start, /quit to exit.\n", cfg.Trigger)

	ctx := context.Background()
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		b.HandleMessage(ctx, &channels.IncomingMessage{
			ID:        uuid.NewString(),
			Channel:   "console",
			From:      consoleSenderID,
			FromName:  "console",
			Content:   line,
			Timestamp: time.Now(),
		})
	}
}
