package bot

import "testing"

func TestClassifyMood(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Mood
	}{
		{"clearly positive", "today was great and I feel happy", MoodHappy},
		{"clearly negative", "I feel sad and lonely", MoodSad},
		{"no sentiment words", "the bus arrives at noon", MoodNeutral},
		{"empty input", "", MoodNeutral},
		{"mixed cancels out", "good day but bad night", MoodNeutral},
		{"punctuation and case ignored", "GREAT!!! こんにちは", MoodHappy},
		{"single weak negative stays neutral", "sorry about that", MoodNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyMood(tt.text); got != tt.expected {
				t.Errorf("ClassifyMood(%q) = %q, want %q (score %d)",
					tt.text, got, tt.expected, MoodScore(tt.text))
			}
		})
	}
}

func TestClassifyMoodBoundaries(t *testing.T) {
	// "cool" scores exactly +1; "no" scores exactly -1. Both boundary
	// scores must classify as neutral.
	tests := []struct {
		name     string
		text     string
		score    int
		expected Mood
	}{
		{"score exactly 1 is neutral", "cool", 1, MoodNeutral},
		{"score exactly -1 is neutral", "no", -1, MoodNeutral},
		{"score 2 is happy", "fine", 2, MoodHappy},
		{"score -2 is sad", "sad", -2, MoodSad},
		{"score 0 is neutral", "whatever", 0, MoodNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MoodScore(tt.text); got != tt.score {
				t.Fatalf("MoodScore(%q) = %d, want %d", tt.text, got, tt.score)
			}
			if got := ClassifyMood(tt.text); got != tt.expected {
				t.Errorf("ClassifyMood(%q) = %q, want %q", tt.text, got, tt.expected)
			}
		})
	}
}

func TestMoodScoreAccumulates(t *testing.T) {
	// Two weak negatives cross the sad boundary together.
	text := "sorry, that was wrong"
	if got := MoodScore(text); got != -3 {
		t.Fatalf("MoodScore(%q) = %d, want -3", text, got)
	}
	if got := ClassifyMood(text); got != MoodSad {
		t.Errorf("ClassifyMood(%q) = %q, want sad", text, got)
	}
}
