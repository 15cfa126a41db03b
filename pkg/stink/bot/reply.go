// Package bot – reply.go post-processes generated replies before
// delivery: word-limit trim, mood emoji, and transport-safe chunking.
package bot

import (
	"math/rand"
	"strings"
)

const (
	// maxReplyWords is the word cap applied to generated replies.
	maxReplyWords = 200

	// ellipsisMarker is appended when a reply is trimmed.
	ellipsisMarker = "..."

	// maxChunkChars is the per-message character limit of the transport.
	maxChunkChars = 4000
)

// moodEmojis are the candidate emoji per mood; one is appended uniformly
// at random to every reply. Unknown moods fall back to the neutral set.
var moodEmojis = map[Mood][]string{
	MoodHappy:   {"😄", "😊", "🎉", "🌞", "✨"},
	MoodSad:     {"💙", "🫂", "🌧️", "😌", "🤍"},
	MoodNeutral: {"🙂", "👍", "💬", "🌿", "✌️"},
}

// TrimWords caps text at maxReplyWords words, appending an ellipsis
// marker when anything was cut. Idempotent once under the cap.
func TrimWords(text string) string {
	words := strings.Fields(text)
	if len(words) <= maxReplyWords {
		return text
	}
	return strings.Join(words[:maxReplyWords], " ") + ellipsisMarker
}

// WithEmoji appends one emoji drawn from the mood's set using rng.
func WithEmoji(text string, mood Mood, rng *rand.Rand) string {
	set, ok := moodEmojis[mood]
	if !ok {
		set = moodEmojis[MoodNeutral]
	}
	return text + " " + set[rng.Intn(len(set))]
}

// Chunks splits text into slices of at most maxChunkChars characters.
// Splitting is by character count, not word-aware; concatenating the
// chunks in order reconstructs the input exactly.
func Chunks(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	chunks := make([]string, 0, len(runes)/maxChunkChars+1)
	for start := 0; start < len(runes); start += maxChunkChars {
		end := min(start+maxChunkChars, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
