// Package wagateway implements platform.Client against the WhatsApp
// web-bridge sidecar: a websocket stream for live message events plus REST
// endpoints for history, attachments, sends, and chat metadata.
package wagateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chatsinkai/chatsink/internal/platform"
)

// Config carries the sidecar endpoint settings.
type Config struct {
	BaseURL string
	Token   string
	// FetchTimeout bounds each REST call (history fetch, download, send).
	FetchTimeout time.Duration
}

// Client talks to the gateway sidecar. The sidecar owns the platform session
// (QR auth, reconnects); this client assumes at-least-once event delivery.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger

	stream *stream
}

// New creates a gateway client. Connect must be called separately to start
// the live event stream.
func New(log *slog.Logger, cfg Config) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		http:    &http.Client{Timeout: timeout},
		logger:  log.With(slog.String("adapter", "wagateway")),
	}, nil
}

type chatPayload struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	IsGroup     bool              `json:"isGroup"`
	Archived    bool              `json:"archived"`
	Pinned      bool              `json:"pinned"`
	UnreadCount int               `json:"unreadCount"`
	Group       *groupInfoPayload `json:"groupMetadata,omitempty"`
}

type groupInfoPayload struct {
	CreatedAt    int64                `json:"creation"`
	Owner        string               `json:"owner,omitempty"`
	Description  string               `json:"description,omitempty"`
	Participants []participantPayload `json:"participants,omitempty"`
}

type participantPayload struct {
	ID           string `json:"id"`
	IsAdmin      bool   `json:"isAdmin"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

type messagePayload struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Author    string `json:"author,omitempty"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	FromMe    bool   `json:"fromMe"`
	HasMedia  bool   `json:"hasMedia"`
	MimeType  string `json:"mimetype,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

type sendRequest struct {
	ChatID string `json:"chatId"`
	Body   string `json:"body"`
}

type sendResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// Chats lists the sidecar's known conversations.
func (c *Client) Chats(ctx context.Context) ([]platform.Chat, error) {
	var payload []chatPayload
	if err := c.getJSON(ctx, "/api/chats", &payload); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	chats := make([]platform.Chat, 0, len(payload))
	for _, p := range payload {
		chats = append(chats, toChat(p))
	}
	return chats, nil
}

// ChatInfo resolves one conversation, including group metadata.
func (c *Client) ChatInfo(ctx context.Context, chatID string) (platform.Chat, error) {
	var payload chatPayload
	path := "/api/chats/" + url.PathEscape(chatID)
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return platform.Chat{}, fmt.Errorf("chat info %s: %w", chatID, err)
	}
	return toChat(payload), nil
}

// RecentMessages fetches up to limit most recent messages for a chat.
func (c *Client) RecentMessages(ctx context.Context, chatID string, limit int) ([]platform.Event, error) {
	if limit <= 0 {
		limit = 30
	}
	var payload []messagePayload
	path := "/api/chats/" + url.PathEscape(chatID) + "/messages?limit=" + strconv.Itoa(limit)
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("fetch messages %s: %w", chatID, err)
	}
	events := make([]platform.Event, 0, len(payload))
	for _, p := range payload {
		events = append(events, toEvent(p))
	}
	return events, nil
}

// DownloadAttachment opens the binary payload of a message. The caller owns
// closing the returned reader.
func (c *Client) DownloadAttachment(ctx context.Context, messageID string) (platform.Attachment, error) {
	path := "/api/messages/" + url.PathEscape(messageID) + "/media"
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return platform.Attachment{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return platform.Attachment{}, fmt.Errorf("download attachment %s: %w", messageID, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return platform.Attachment{}, fmt.Errorf("download attachment %s: gateway returned %d: %s", messageID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	size := int64(0)
	if v := resp.Header.Get("Content-Length"); v != "" {
		size, _ = strconv.ParseInt(v, 10, 64)
	}
	return platform.Attachment{
		Data:     resp.Body,
		MimeType: resp.Header.Get("Content-Type"),
		FileName: resp.Header.Get("X-File-Name"),
		Size:     size,
	}, nil
}

// SendText delivers a text message to a chat and returns the
// platform-assigned message identity.
func (c *Client) SendText(ctx context.Context, chatID, text string) (platform.SendResult, error) {
	body, err := json.Marshal(sendRequest{ChatID: chatID, Body: text})
	if err != nil {
		return platform.SendResult{}, fmt.Errorf("encode send request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/messages", bytes.NewReader(body))
	if err != nil {
		return platform.SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return platform.SendResult{}, fmt.Errorf("send message: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return platform.SendResult{}, fmt.Errorf("send message: gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return platform.SendResult{}, fmt.Errorf("decode send response: %w", err)
	}
	sentAt := time.Now().UTC()
	if out.Timestamp > 0 {
		sentAt = time.Unix(out.Timestamp, 0).UTC()
	}
	return platform.SendResult{MessageID: out.ID, SentAt: sentAt}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func toChat(p chatPayload) platform.Chat {
	chat := platform.Chat{
		ID:          p.ID,
		Name:        p.Name,
		IsGroup:     p.IsGroup,
		Archived:    p.Archived,
		Pinned:      p.Pinned,
		UnreadCount: p.UnreadCount,
	}
	if p.Group != nil {
		info := &platform.GroupInfo{
			Owner:       p.Group.Owner,
			Description: p.Group.Description,
		}
		if p.Group.CreatedAt > 0 {
			info.CreatedAt = time.Unix(p.Group.CreatedAt, 0).UTC()
		}
		for _, part := range p.Group.Participants {
			info.Participants = append(info.Participants, platform.Participant{
				ID:           part.ID,
				IsAdmin:      part.IsAdmin,
				IsSuperAdmin: part.IsSuperAdmin,
			})
		}
		chat.Group = info
	}
	return chat
}

func toEvent(p messagePayload) platform.Event {
	chatID := p.ChatID
	if chatID == "" {
		// Live events from older bridge builds only carry from/to.
		if p.FromMe {
			chatID = p.To
		} else {
			chatID = p.From
		}
	}
	return platform.Event{
		MessageID:     p.ID,
		ChatID:        chatID,
		From:          p.From,
		To:            p.To,
		AuthorID:      p.Author,
		Body:          p.Body,
		Kind:          p.Type,
		SentAt:        time.Unix(p.Timestamp, 0).UTC(),
		FromMe:        p.FromMe,
		HasAttachment: p.HasMedia,
		MimeType:      p.MimeType,
		FileName:      p.Filename,
	}
}
