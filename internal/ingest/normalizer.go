package ingest

import (
	"github.com/chatsinkai/chatsink/internal/platform"
	"github.com/chatsinkai/chatsink/internal/store"
)

// Normalize maps a platform event to the canonical message record. It is
// pure: the same event always produces the same record, which keeps
// re-ingestion idempotent.
func Normalize(ev platform.Event, chat platform.Chat) store.Message {
	conversationID := chat.ID
	if conversationID == "" {
		conversationID = ev.ChatID
	}
	return store.Message{
		MessageID:      ev.MessageID,
		ConversationID: conversationID,
		From:           ev.From,
		To:             ev.To,
		AuthorID:       ev.AuthorID,
		Body:           ev.Body,
		Kind:           store.NormalizeKind(ev.Kind),
		SentAt:         ev.SentAt.UTC(),
		Outbound:       ev.FromMe,
	}
}

// NormalizeConversation maps resolved chat context to the conversation
// catalog record. Rollup fields are owned by the gateway and left zero.
func NormalizeConversation(chat platform.Chat) store.Conversation {
	c := store.Conversation{
		ConversationID: chat.ID,
		DisplayName:    chat.Name,
		IsGroup:        chat.IsGroup,
		Archived:       chat.Archived,
		Pinned:         chat.Pinned,
		UnreadCount:    chat.UnreadCount,
	}
	if chat.Group != nil {
		gi := store.GroupInfo{
			CreatedAt:   chat.Group.CreatedAt,
			OwnerRef:    chat.Group.Owner,
			Description: chat.Group.Description,
		}
		for _, p := range chat.Group.Participants {
			gi.Participants = append(gi.Participants, store.Participant{
				Ref:          p.ID,
				IsAdmin:      p.IsAdmin,
				IsSuperAdmin: p.IsSuperAdmin,
			})
		}
		c.GroupInfo = &gi
	}
	return c
}
