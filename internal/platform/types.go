// Package platform defines the boundary types and client contract for the
// messaging platform this service ingests from. The platform connection,
// session, and QR authentication lifecycle live in an external gateway
// process; this package only models what crosses the wire.
package platform

import (
	"io"
	"time"
)

// Event is a single platform message event, live or fetched from history.
// Fields are fully resolved by the adapter: downstream components never go
// back to the platform to fill in missing data.
type Event struct {
	MessageID string    `json:"id"`
	ChatID    string    `json:"chatId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	// AuthorID identifies the sending participant in group chats; empty
	// for direct conversations.
	AuthorID      string    `json:"author,omitempty"`
	Body          string    `json:"body"`
	Kind          string    `json:"kind"`
	SentAt        time.Time `json:"sentAt"`
	FromMe        bool      `json:"fromMe"`
	HasAttachment bool      `json:"hasAttachment"`
	// MimeType and FileName describe the declared attachment, when present.
	MimeType string `json:"mimeType,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// Chat is the resolved conversation context for an event.
type Chat struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	IsGroup     bool       `json:"isGroup"`
	Archived    bool       `json:"archived"`
	Pinned      bool       `json:"pinned"`
	UnreadCount int        `json:"unreadCount"`
	Group       *GroupInfo `json:"group,omitempty"`
}

// GroupInfo carries group-only metadata.
type GroupInfo struct {
	CreatedAt    time.Time     `json:"createdAt"`
	Owner        string        `json:"owner,omitempty"`
	Description  string        `json:"description,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
}

// Participant is a group member reference.
type Participant struct {
	ID           string `json:"id"`
	IsAdmin      bool   `json:"isAdmin"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// Attachment is a platform-held binary payload opened for download.
// The caller owns closing Data.
type Attachment struct {
	Data     io.ReadCloser
	MimeType string
	FileName string
	Size     int64
}

// SendResult reports the platform-assigned identity of a sent message.
type SendResult struct {
	MessageID string    `json:"id"`
	SentAt    time.Time `json:"sentAt"`
}

// Inbound is a live event paired with its resolved chat context.
type Inbound struct {
	Event Event
	Chat  Chat
}
