package ingest

import (
	"github.com/chatsinkai/chatsink/internal/ai"
	"github.com/chatsinkai/chatsink/internal/store"
)

// BuildContext turns recent history (newest first, as the gateway returns
// it) into completion turns in chronological order. Outbound messages
// become assistant turns. At most window turns are kept, always the most
// recent ones.
func BuildContext(history []store.Message, window int) []ai.Turn {
	if window <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > window {
		history = history[:window]
	}
	turns := make([]ai.Turn, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		role := ai.RoleUser
		if m.Outbound {
			role = ai.RoleAssistant
		}
		turns = append(turns, ai.Turn{Role: role, Content: m.Body})
	}
	return turns
}
