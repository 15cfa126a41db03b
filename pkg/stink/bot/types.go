// Package bot – types.go defines the domain types shared across the
// session pipeline and the store.
package bot

import "time"

// Mood is the categorical sentiment label derived per message.
type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodSad     Mood = "sad"
	MoodNeutral Mood = "neutral"
)

// Gender is the inferred or user-resolved gender.
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderOther       Gender = "other"
	GenderPreferNot   Gender = "prefer not to say"
	GenderUnknown     Gender = "unknown"
)

// AgeBracket is the inferred age bracket.
type AgeBracket string

const (
	AgeTeen       AgeBracket = "teen"
	AgeYoungAdult AgeBracket = "young adult"
	AgeAdult      AgeBracket = "adult"
	AgeMiddleAged AgeBracket = "middle aged"
	AgeSenior     AgeBracket = "senior"
	AgeUnknown    AgeBracket = "unknown"
)

// User is a persisted user profile, keyed by phone number.
type User struct {
	PhoneNumber     string
	Name            string
	Gender          Gender
	AgeBracket      AgeBracket
	Activated       bool
	LastInteraction time.Time
}

// ChatMessage is one persisted chat turn. Append-only.
type ChatMessage struct {
	ID          int64
	PhoneNumber string
	Message     string
	IsBot       bool
	// Mood is empty for bot-authored messages.
	Mood      Mood
	CreatedAt time.Time
}

// Suggestion is a persisted activity suggestion. Append-only.
type Suggestion struct {
	ID          int64
	PhoneNumber string
	Mood        Mood
	Suggestion  string
	CreatedAt   time.Time
}

// Turn is one role-tagged entry in the LLM context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn roles, OpenAI chat completion convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ProfilePatch is a partial profile write. Nil fields are preserved on
// conflict (coalesce semantics) rather than overwriting existing values.
type ProfilePatch struct {
	PhoneNumber string
	Name        *string
	Gender      *Gender
	AgeBracket  *AgeBracket
}
