// Package bot – checkin.go runs the daily re-engagement batch.
// Uses robfig/cron for schedule parsing and firing.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// CheckIn periodically messages recently active users, referencing
// their name and last known mood, through the same generation pipeline
// as live turns.
type CheckIn struct {
	bot     *Bot
	cron    *cron.Cron
	logger  *slog.Logger
	stopped atomic.Bool
}

// NewCheckIn creates the check-in job from the bot's config. Call Start
// to begin scheduling.
func NewCheckIn(b *Bot, logger *slog.Logger) *CheckIn {
	return &CheckIn{
		bot:    b,
		cron:   cron.New(),
		logger: logger.With("component", "checkin"),
	}
}

// Start registers the cron entry and begins the schedule.
func (c *CheckIn) Start(ctx context.Context) error {
	schedule := c.bot.cfg.CheckIn.Schedule
	_, err := c.cron.AddFunc(schedule, func() {
		if c.stopped.Load() {
			return
		}
		c.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("register check-in schedule %q: %w", schedule, err)
	}
	c.cron.Start()
	c.logger.Info("check-in job scheduled", "schedule", schedule)
	return nil
}

// Stop prevents new batch iterations from starting. An in-flight batch
// runs to completion.
func (c *CheckIn) Stop() {
	c.stopped.Store(true)
	c.cron.Stop()
}

// Run executes one batch over all activated users whose last
// interaction falls within the configured window. Per-user failures are
// logged and never abort the remaining batch.
func (c *CheckIn) Run(ctx context.Context) {
	users, err := c.bot.store.ActiveUsersSince(ctx, c.bot.cfg.CheckIn.WindowDays)
	if err != nil {
		c.logger.Error("active user query failed, skipping batch", "error", err)
		return
	}
	c.logger.Info("check-in batch starting", "users", len(users))

	for _, user := range users {
		c.checkInUser(ctx, user)
	}
}

func (c *CheckIn) checkInUser(ctx context.Context, user User) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("check-in panicked for user", "user", user.PhoneNumber, "panic", r)
		}
	}()

	mood, err := c.bot.store.LastMood(ctx, user.PhoneNumber)
	if err != nil {
		c.logger.Warn("last mood lookup failed, assuming neutral", "user", user.PhoneNumber, "error", err)
		mood = MoodNeutral
	}

	history, err := c.bot.store.RecentHistory(ctx, user.PhoneNumber, c.bot.cfg.History)
	if err != nil {
		c.logger.Warn("history fetch failed, continuing without history", "user", user.PhoneNumber, "error", err)
		history = nil
	}

	name := user.Name
	if name == "" {
		name = "there"
	}
	prompt := fmt.Sprintf(
		"Write a short, warm check-in message for %s, who last seemed to be feeling %s. Ask how they're doing today.",
		name, mood)

	aux := map[string]any{"isCheckIn": true}
	turns := BuildContext(c.bot.cfg.Persona, aux, history, prompt)
	reply := c.bot.processReply(c.bot.gen.Generate(ctx, turns), mood)

	if err := c.bot.store.InsertChatMessage(ctx, user.PhoneNumber, reply, true, ""); err != nil {
		c.logger.Warn("check-in persist failed", "user", user.PhoneNumber, "error", err)
	}
	c.bot.deliver(ctx, user.PhoneNumber, reply)
	c.logger.Debug("check-in delivered", "user", user.PhoneNumber, "mood", mood)
}
