package bot

import (
	"strings"
	"testing"
)

func TestBuildContext(t *testing.T) {
	t.Run("no history", func(t *testing.T) {
		turns := BuildContext("persona text", nil, nil, "hi")

		if len(turns) != 2 {
			t.Fatalf("got %d turns, want 2", len(turns))
		}
		if turns[0].Role != RoleSystem || turns[0].Content != "persona text" {
			t.Errorf("system turn = %+v", turns[0])
		}
		if turns[1].Role != RoleUser || turns[1].Content != "hi" {
			t.Errorf("user turn = %+v", turns[1])
		}
	})

	t.Run("aux context serialized into system turn", func(t *testing.T) {
		turns := BuildContext("persona", map[string]any{"isCheckIn": true}, nil, "hi")

		if !strings.Contains(turns[0].Content, `"isCheckIn":true`) {
			t.Errorf("system turn missing aux JSON: %q", turns[0].Content)
		}
		if !strings.HasPrefix(turns[0].Content, "persona") {
			t.Errorf("system turn should start with persona: %q", turns[0].Content)
		}
	})

	t.Run("history reversed to chronological order", func(t *testing.T) {
		// Store order is newest-first.
		history := []ChatMessage{
			{Message: "third", IsBot: true},
			{Message: "second", IsBot: false},
			{Message: "first", IsBot: true},
		}
		turns := BuildContext("p", nil, history, "fourth")

		want := []string{"first", "second", "third", "fourth"}
		if len(turns) != 5 {
			t.Fatalf("got %d turns, want 5", len(turns))
		}
		for i, w := range want {
			if turns[i+1].Content != w {
				t.Errorf("turn %d content = %q, want %q", i+1, turns[i+1].Content, w)
			}
		}
	})

	t.Run("roles follow authorship", func(t *testing.T) {
		history := []ChatMessage{
			{Message: "bot reply", IsBot: true},
			{Message: "user msg", IsBot: false},
		}
		turns := BuildContext("p", nil, history, "next")

		if turns[1].Role != RoleUser {
			t.Errorf("oldest turn role = %q, want user", turns[1].Role)
		}
		if turns[2].Role != RoleAssistant {
			t.Errorf("bot turn role = %q, want assistant", turns[2].Role)
		}
		if turns[3].Role != RoleUser {
			t.Errorf("new input role = %q, want user", turns[3].Role)
		}
	})
}
