package bot

import (
	"encoding/json"
	"fmt"
)

// BuildContext assembles the turn list sent to the model: a system turn
// carrying the persona (plus optional auxiliary data rendered as JSON),
// the stored history oldest-first, then the current user input.
//
// history is expected newest-first, as returned by the store, and is
// reversed here so the model reads the conversation chronologically.
func BuildContext(persona string, aux any, history []ChatMessage, input string) []Turn {
	system := persona
	if aux != nil {
		if data, err := json.Marshal(aux); err == nil {
			system = fmt.Sprintf("%s\n\nContext: %s", persona, data)
		}
	}

	turns := make([]Turn, 0, len(history)+2)
	turns = append(turns, Turn{Role: RoleSystem, Content: system})

	for i := len(history) - 1; i >= 0; i-- {
		role := RoleUser
		if history[i].IsBot {
			role = RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Content: history[i].Message})
	}

	return append(turns, Turn{Role: RoleUser, Content: input})
}
