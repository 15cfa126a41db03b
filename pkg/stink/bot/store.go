// Package bot – store.go provides the central SQLite database for Stink.
// A single stink.db file holds user profiles, chat history and
// suggestions. The whatsapp.db (whatsmeow session) remains separate.
package bot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// schema is the DDL executed on every startup (idempotent via IF NOT EXISTS).
const schema = `
-- User profiles, one row per phone number. A row exists only after
-- onboarding has resolved gender at least once.
CREATE TABLE IF NOT EXISTS users (
    phone_number     TEXT PRIMARY KEY,
    name             TEXT,
    gender           TEXT,
    age_bracket      TEXT,
    activated        INTEGER NOT NULL DEFAULT 1,
    last_interaction TEXT NOT NULL
);

-- Chat history (append-only, one row per message).
CREATE TABLE IF NOT EXISTS chat_messages (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    phone_number TEXT NOT NULL,
    message      TEXT NOT NULL,
    is_bot       INTEGER NOT NULL DEFAULT 0,
    mood         TEXT,
    created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_phone ON chat_messages(phone_number, id);

-- Activity suggestions (append-only).
CREATE TABLE IF NOT EXISTS suggestions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    phone_number TEXT NOT NULL,
    mood         TEXT NOT NULL,
    suggestion   TEXT NOT NULL,
    created_at   TEXT NOT NULL
);
`

// Store wraps the SQLite database with the operations the pipeline needs.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the stink.db at the given path.
// It enables WAL mode and creates all tables. A connectivity failure
// here is fatal for the caller — there is no degraded mode without
// the store.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		path = "./data/stink.db"
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertChatMessage appends one chat message. An empty mood is stored
// as NULL (bot-authored messages carry no mood).
func (s *Store) InsertChatMessage(ctx context.Context, phone, message string, isBot bool, mood Mood) error {
	var moodVal sql.NullString
	if mood != "" {
		moodVal = sql.NullString{String: string(mood), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (phone_number, message, is_bot, mood, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		phone, message, isBot, moodVal, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// UpsertUser creates or updates a user profile. Nil patch fields never
// overwrite existing non-null values (COALESCE on conflict), and
// last_interaction is refreshed on every write.
func (s *Store) UpsertUser(ctx context.Context, patch ProfilePatch) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (phone_number, name, gender, age_bracket, activated, last_interaction)
		 VALUES (?, ?, ?, ?, 1, ?)
		 ON CONFLICT(phone_number) DO UPDATE SET
		   name             = COALESCE(excluded.name, users.name),
		   gender           = COALESCE(excluded.gender, users.gender),
		   age_bracket      = COALESCE(excluded.age_bracket, users.age_bracket),
		   activated        = 1,
		   last_interaction = excluded.last_interaction`,
		patch.PhoneNumber,
		nullString(patch.Name),
		nullGender(patch.Gender),
		nullBracket(patch.AgeBracket),
		now)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", patch.PhoneNumber, err)
	}
	return nil
}

// GetUser returns the profile for a phone number, or nil if absent.
func (s *Store) GetUser(ctx context.Context, phone string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT phone_number, name, gender, age_bracket, activated, last_interaction
		 FROM users WHERE phone_number = ?`, phone)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", phone, err)
	}
	return u, nil
}

// RecentHistory returns up to limit chat messages for a user,
// newest-first. Callers that need chronological order must reverse.
func (s *Store) RecentHistory(ctx context.Context, phone string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, phone_number, message, is_bot, mood, created_at
		 FROM chat_messages
		 WHERE phone_number = ?
		 ORDER BY id DESC
		 LIMIT ?`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", phone, err)
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var mood sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.PhoneNumber, &m.Message, &m.IsBot, &mood, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if mood.Valid {
			m.Mood = Mood(mood.String)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// LastMood returns the mood of the user's most recent persisted
// message. No history, or a NULL mood on that message, reads as
// neutral.
func (s *Store) LastMood(ctx context.Context, phone string) (Mood, error) {
	var mood sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT mood FROM chat_messages
		 WHERE phone_number = ?
		 ORDER BY id DESC LIMIT 1`, phone).Scan(&mood)
	if err == sql.ErrNoRows {
		return MoodNeutral, nil
	}
	if err != nil {
		return MoodNeutral, fmt.Errorf("last mood for %s: %w", phone, err)
	}
	if !mood.Valid || mood.String == "" {
		return MoodNeutral, nil
	}
	return Mood(mood.String), nil
}

// InsertSuggestion appends one suggestion row.
func (s *Store) InsertSuggestion(ctx context.Context, phone string, mood Mood, suggestion string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suggestions (phone_number, mood, suggestion, created_at)
		 VALUES (?, ?, ?, ?)`,
		phone, string(mood), suggestion, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}
	return nil
}

// ActiveUsersSince returns activated users whose last interaction falls
// within the past `days` days.
func (s *Store) ActiveUsersSince(ctx context.Context, days int) ([]User, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)

	rows, err := s.db.QueryContext(ctx,
		`SELECT phone_number, name, gender, age_bracket, activated, last_interaction
		 FROM users
		 WHERE activated = 1 AND last_interaction >= ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ---------- Helpers ----------

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (*User, error) {
	var u User
	var name, gender, bracket sql.NullString
	var lastInteraction string
	if err := r.Scan(&u.PhoneNumber, &name, &gender, &bracket, &u.Activated, &lastInteraction); err != nil {
		return nil, err
	}
	u.Name = name.String
	u.Gender = GenderUnknown
	if gender.Valid && gender.String != "" {
		u.Gender = Gender(gender.String)
	}
	u.AgeBracket = AgeUnknown
	if bracket.Valid && bracket.String != "" {
		u.AgeBracket = AgeBracket(bracket.String)
	}
	u.LastInteraction, _ = time.Parse(time.RFC3339, lastInteraction)
	return &u, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullGender(g *Gender) sql.NullString {
	if g == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*g), Valid: true}
}

func nullBracket(b *AgeBracket) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*b), Valid: true}
}
