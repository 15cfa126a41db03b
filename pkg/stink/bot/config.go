// Package bot – config.go defines all configuration structures for the
// Stink companion bot.
package bot

import (
	"time"

	"github.com/pbaptista/stink/pkg/stink/channels/whatsapp"
)

// Config holds all bot configuration.
type Config struct {
	// Name is the bot name shown in logs and the persona.
	Name string `yaml:"name"`

	// Trigger is the phrase that starts onboarding for unknown senders
	// (case-insensitive substring match).
	Trigger string `yaml:"trigger"`

	// Model is the LLM model to use (e.g. "gpt-4o-mini").
	Model string `yaml:"model"`

	// Persona is the system prompt describing the bot's personality.
	Persona string `yaml:"persona"`

	// API configures the generative backend endpoint.
	API APIConfig `yaml:"api"`

	// Database configures the persistent store.
	Database DatabaseConfig `yaml:"database"`

	// Channels configures communication channels.
	Channels ChannelsConfig `yaml:"channels"`

	// History is the number of past chat turns included in LLM context.
	History int `yaml:"history"`

	// Reply configures reply post-processing and delivery.
	Reply ReplyConfig `yaml:"reply"`

	// CheckIn configures the daily re-engagement job.
	CheckIn CheckInConfig `yaml:"check_in"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the OpenAI-compatible backend endpoint.
type APIConfig struct {
	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string `yaml:"base_url"`

	// APIKey is the bearer token. Prefer the OS keyring or environment
	// over storing it here (see keyring.go).
	APIKey string `yaml:"api_key"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`
}

// ChannelsConfig holds configuration for all channels.
type ChannelsConfig struct {
	// WhatsApp is the WhatsApp channel config (core).
	WhatsApp whatsapp.Config `yaml:"whatsapp"`
}

// ReplyConfig configures reply post-processing and chunked delivery.
type ReplyConfig struct {
	// ChunkDelay is the pacing delay between delivered chunks.
	// This is a throttle against transport rate limits.
	ChunkDelay time.Duration `yaml:"chunk_delay"`
}

// CheckInConfig configures the daily check-in job.
type CheckInConfig struct {
	// Enabled turns the check-in job on/off.
	Enabled bool `yaml:"enabled"`

	// Schedule is the cron expression for the job (e.g. "0 9 * * *").
	Schedule string `yaml:"schedule"`

	// WindowDays is the recency window for "active" users.
	WindowDays int `yaml:"window_days"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the log format ("json", "text").
	Format string `yaml:"format"`
}

// DefaultConfig returns the default bot configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "Stink",
		Trigger: "hey stink",
		Model:   "gpt-4o-mini",
		Persona: "You are Stink, a warm, playful companion who chats casually, " +
			"remembers what the user tells you, and keeps replies short and friendly.",
		API: APIConfig{
			BaseURL: "https://api.openai.com/v1",
			Timeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/stink.db",
		},
		Channels: ChannelsConfig{
			WhatsApp: whatsapp.DefaultConfig(),
		},
		History: 5,
		Reply: ReplyConfig{
			ChunkDelay: time.Second,
		},
		CheckIn: CheckInConfig{
			Enabled:    true,
			Schedule:   "0 9 * * *",
			WindowDays: 7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
