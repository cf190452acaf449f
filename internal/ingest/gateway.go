// Package ingest runs the message ingestion pipeline: normalization,
// deduplication, idempotent persistence, attachment materialization,
// conversation rollups, and auto-reply orchestration.
package ingest

import (
	"context"
	"time"

	"github.com/chatsinkai/chatsink/internal/store"
)

// Gateway is the persistence boundary the pipeline writes through. It is
// the sole arbiter of what has been seen: the pipeline never keeps its own
// dedup state.
type Gateway interface {
	UpsertMessage(ctx context.Context, m store.Message) error
	ExistingMessageIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	UpsertConversation(ctx context.Context, c store.Conversation) error
	RecordsInConversation(ctx context.Context, conversationID string, limit int) ([]store.Message, error)
	IncrementRollup(ctx context.Context, conversationID string, sentAt time.Time) error
	AttachGeneratedReply(ctx context.Context, messageID string, reply store.GeneratedReply) error
}
