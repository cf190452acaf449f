package platform

import "context"

// Handler consumes live inbound events. Implementations must not panic;
// event processing errors are theirs to absorb and log.
type Handler interface {
	HandleInbound(ctx context.Context, msg Inbound)
}

// Client is the platform boundary used by the ingestion pipeline. The
// platform redelivers messages (at-least-once); callers are responsible for
// deduplication.
type Client interface {
	// Chats lists the known conversations.
	Chats(ctx context.Context) ([]Chat, error)
	// ChatInfo resolves one conversation, including group metadata.
	ChatInfo(ctx context.Context, chatID string) (Chat, error)
	// RecentMessages fetches up to limit most recent messages for a chat
	// from the platform (not the local store).
	RecentMessages(ctx context.Context, chatID string, limit int) ([]Event, error)
	// DownloadAttachment opens the binary payload of a message.
	DownloadAttachment(ctx context.Context, messageID string) (Attachment, error)
	// SendText delivers a text message to a chat.
	SendText(ctx context.Context, chatID, text string) (SendResult, error)
}
