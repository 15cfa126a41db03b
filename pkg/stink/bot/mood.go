// Package bot – mood.go classifies message sentiment with an AFINN-style
// word valence lexicon. The contract is the decision boundary, not the
// scoring internals: score > 1 is happy, score < -1 is sad, anything in
// between (inclusive) is neutral.
package bot

import "strings"

// moodLexicon maps lowercase tokens to integer valences in [-5, 5],
// AFINN-165 style. Unknown tokens score zero.
var moodLexicon = map[string]int{
	// Positive.
	"good": 3, "great": 3, "nice": 3, "happy": 3, "glad": 3,
	"love": 3, "loved": 3, "loves": 3, "lovely": 3, "liked": 2,
	"like": 2, "likes": 2, "awesome": 4, "amazing": 4, "excellent": 3,
	"fantastic": 4, "wonderful": 4, "best": 3, "better": 2, "fun": 4,
	"funny": 4, "joy": 3, "joyful": 3, "excited": 3, "exciting": 3,
	"win": 4, "won": 3, "winning": 4, "cool": 1, "fine": 2,
	"ok": 2, "okay": 2, "yay": 3, "thanks": 2, "thank": 2,
	"beautiful": 3, "perfect": 3, "proud": 2, "hope": 2, "hopeful": 2,
	"laugh": 4, "laughing": 2, "smile": 2, "delighted": 3, "relieved": 2,
	"calm": 2, "peaceful": 2, "blessed": 3, "grateful": 3, "super": 3,
	"sweet": 2, "strong": 2, "cheerful": 3, "fabulous": 4, "brilliant": 4,

	// Negative.
	"bad": -3, "sad": -2, "unhappy": -2, "terrible": -3, "horrible": -3,
	"awful": -3, "hate": -3, "hated": -3, "hates": -3, "angry": -3,
	"mad": -3, "upset": -2, "depressed": -2, "depressing": -2, "cry": -1,
	"crying": -2, "cried": -2, "tears": -2, "lonely": -2, "alone": -2,
	"miserable": -3, "hurt": -2, "hurts": -2, "pain": -2, "painful": -2,
	"worst": -3, "worse": -3, "lost": -3, "lose": -3, "losing": -3,
	"fail": -2, "failed": -2, "failure": -2, "tired": -2, "exhausted": -2,
	"sick": -2, "scared": -2, "afraid": -2, "fear": -2, "worried": -3,
	"worry": -3, "anxious": -2, "anxiety": -2, "stress": -1, "stressed": -2,
	"annoyed": -2, "annoying": -2, "broken": -1, "broke": -2, "sucks": -3,
	"suck": -3, "die": -3, "dead": -3, "death": -2, "sorry": -1,
	"wrong": -2, "problem": -2, "problems": -2, "trouble": -2, "no": -1,
	"never": -1, "nothing": -1, "empty": -1, "numb": -1, "grief": -2,
}

// MoodScore sums the lexicon valences of the tokens in text.
// Unscorable text yields zero.
func MoodScore(text string) int {
	score := 0
	for _, tok := range tokenizeMood(text) {
		score += moodLexicon[tok]
	}
	return score
}

// ClassifyMood maps a message to its mood.
// Boundary values: scores of exactly 1 and -1 are both neutral.
func ClassifyMood(text string) Mood {
	switch score := MoodScore(text); {
	case score > 1:
		return MoodHappy
	case score < -1:
		return MoodSad
	default:
		return MoodNeutral
	}
}

// tokenizeMood lowercases the text and splits it into letter runs,
// discarding digits and punctuation.
func tokenizeMood(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '\''
	})
}
