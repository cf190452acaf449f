// Package store is the deduplicating persistence gateway. It is the only
// component that writes Message and Conversation records, and the sole
// arbiter of whether a message has already been recorded.
package store

import "time"

// Kind classifies message content.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindSticker  Kind = "sticker"
	KindOther    Kind = "other"
)

// NormalizeKind maps a platform content type onto the canonical set.
// Unknown types collapse to KindOther rather than failing.
func NormalizeKind(raw string) Kind {
	switch Kind(raw) {
	case KindText, KindImage, KindAudio, KindVideo, KindDocument, KindSticker:
		return Kind(raw)
	case "chat":
		// The platform labels plain text messages "chat".
		return KindText
	case "ptt":
		// Push-to-talk voice notes are audio.
		return KindAudio
	default:
		return KindOther
	}
}

// Attachment describes a materialized (or failed) binary payload.
type Attachment struct {
	StoredName     string    `bson:"storedName" json:"storedName"`
	OriginalName   string    `bson:"originalName,omitempty" json:"originalName,omitempty"`
	MimeType       string    `bson:"mimeType,omitempty" json:"mimeType,omitempty"`
	ByteSize       int64     `bson:"byteSize" json:"byteSize"`
	StorageKey     string    `bson:"storageKey" json:"storageKey"`
	AccessPath     string    `bson:"accessPath,omitempty" json:"accessPath,omitempty"`
	MaterializedAt time.Time `bson:"materializedAt" json:"materializedAt"`
	Success        bool      `bson:"success" json:"success"`
	Error          string    `bson:"error,omitempty" json:"error,omitempty"`
}

// GeneratedReply back-annotates the inbound message that triggered an
// automated reply.
type GeneratedReply struct {
	Text            string    `bson:"text" json:"text"`
	TriggeredAt     time.Time `bson:"triggeredAt" json:"triggeredAt"`
	MatchedTriggers []string  `bson:"matchedTriggers,omitempty" json:"matchedTriggers,omitempty"`
	Classification  string    `bson:"classification,omitempty" json:"classification,omitempty"`
}

// Message is one persisted conversation turn. Messages are logically
// immutable after creation, except for the single GeneratedReply
// back-annotation.
type Message struct {
	MessageID      string `bson:"messageId" json:"messageId"`
	ConversationID string `bson:"conversationId" json:"conversationId"`
	From           string `bson:"from" json:"from"`
	To             string `bson:"to,omitempty" json:"to,omitempty"`
	// AuthorID identifies the sending participant in group conversations.
	AuthorID   string          `bson:"authorId,omitempty" json:"authorId,omitempty"`
	Body       string          `bson:"body" json:"body"`
	Kind       Kind            `bson:"kind" json:"kind"`
	SentAt     time.Time       `bson:"sentAt" json:"sentAt"`
	Outbound   bool            `bson:"outbound" json:"outbound"`
	Attachment *Attachment     `bson:"attachment,omitempty" json:"attachment,omitempty"`
	Reply      *GeneratedReply `bson:"generatedReply,omitempty" json:"generatedReply,omitempty"`
	CreatedAt  time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// Participant is a group member reference.
type Participant struct {
	Ref          string `bson:"ref" json:"ref"`
	IsAdmin      bool   `bson:"isAdmin" json:"isAdmin"`
	IsSuperAdmin bool   `bson:"isSuperAdmin" json:"isSuperAdmin"`
}

// GroupInfo is present only on multi-party conversations.
type GroupInfo struct {
	CreatedAt    time.Time     `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	OwnerRef     string        `bson:"ownerRef,omitempty" json:"ownerRef,omitempty"`
	Description  string        `bson:"description,omitempty" json:"description,omitempty"`
	Participants []Participant `bson:"participants,omitempty" json:"participants,omitempty"`
}

// Rollup is the monotonically maintained per-conversation aggregate.
// TotalMessages never decreases; FirstMessageAt is first-write-wins.
type Rollup struct {
	TotalMessages  int64      `bson:"totalMessages" json:"totalMessages"`
	FirstMessageAt *time.Time `bson:"firstMessageAt,omitempty" json:"firstMessageAt,omitempty"`
	LastMessageAt  *time.Time `bson:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
}

// Conversation is one chat thread.
type Conversation struct {
	ConversationID string     `bson:"conversationId" json:"conversationId"`
	DisplayName    string     `bson:"displayName" json:"displayName"`
	IsGroup        bool       `bson:"isGroup" json:"isGroup"`
	Archived       bool       `bson:"archived" json:"archived"`
	Pinned         bool       `bson:"pinned" json:"pinned"`
	UnreadCount    int        `bson:"unreadCount" json:"unreadCount"`
	GroupInfo      *GroupInfo `bson:"groupInfo,omitempty" json:"groupInfo,omitempty"`
	Rollup         Rollup     `bson:"rollup" json:"rollup"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// SearchOptions filter a message body search.
type SearchOptions struct {
	ConversationID string
	Outbound       *bool
	From           *time.Time
	To             *time.Time
	Limit          int
	Skip           int
}

// ConversationStats aggregates one conversation's history.
type ConversationStats struct {
	TotalMessages int64      `json:"totalMessages"`
	Inbound       int64      `json:"inbound"`
	Outbound      int64      `json:"outbound"`
	AutoReplies   int64      `json:"autoReplies"`
	FirstMessage  *time.Time `json:"firstMessage,omitempty"`
	LastMessage   *time.Time `json:"lastMessage,omitempty"`
}

// GlobalStats summarizes the whole store for status reporting.
type GlobalStats struct {
	Conversations      int64      `json:"conversations"`
	GroupConversations int64      `json:"groupConversations"`
	Messages           int64      `json:"messages"`
	AutoReplies        int64      `json:"autoReplies"`
	LastMessageAt      *time.Time `json:"lastMessageAt,omitempty"`
}
