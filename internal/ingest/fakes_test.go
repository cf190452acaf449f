package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/chatsinkai/chatsink/internal/ai"
	"github.com/chatsinkai/chatsink/internal/platform"
	"github.com/chatsinkai/chatsink/internal/store"
)

// fakeGateway implements Gateway in memory, recording every write.
type fakeGateway struct {
	mu sync.Mutex

	messages      map[string]store.Message
	conversations map[string]store.Conversation
	rollups       map[string]int
	annotations   map[string]store.GeneratedReply

	upsertErr     error
	existingErr   error
	rollupErr     error
	recordsErr    error
	annotateErr   error
	recordsResult []store.Message
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		messages:      make(map[string]store.Message),
		conversations: make(map[string]store.Conversation),
		rollups:       make(map[string]int),
		annotations:   make(map[string]store.GeneratedReply),
	}
}

func (g *fakeGateway) UpsertMessage(_ context.Context, m store.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.upsertErr != nil {
		return g.upsertErr
	}
	g.messages[m.MessageID] = m
	return nil
}

func (g *fakeGateway) ExistingMessageIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.existingErr != nil {
		return nil, g.existingErr
	}
	out := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := g.messages[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (g *fakeGateway) UpsertConversation(_ context.Context, c store.Conversation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	// Matches the store contract: an empty display name never overwrites
	// one already on record.
	if prev, ok := g.conversations[c.ConversationID]; ok && c.DisplayName == "" {
		c.DisplayName = prev.DisplayName
	}
	g.conversations[c.ConversationID] = c
	return nil
}

func (g *fakeGateway) RecordsInConversation(_ context.Context, conversationID string, limit int) ([]store.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.recordsErr != nil {
		return nil, g.recordsErr
	}
	return g.recordsResult, nil
}

func (g *fakeGateway) IncrementRollup(_ context.Context, conversationID string, _ time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rollupErr != nil {
		return g.rollupErr
	}
	g.rollups[conversationID]++
	return nil
}

func (g *fakeGateway) AttachGeneratedReply(_ context.Context, messageID string, reply store.GeneratedReply) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.annotateErr != nil {
		return g.annotateErr
	}
	g.annotations[messageID] = reply
	return nil
}

// fakeCompleter returns a canned reply or error.
type fakeCompleter struct {
	reply string
	err   error
	turns []ai.Turn
}

func (c *fakeCompleter) Complete(_ context.Context, turns []ai.Turn) (string, error) {
	c.turns = turns
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

// fakeSender records sends and hands back a platform-assigned ID.
type fakeSender struct {
	sent   []string
	chatID string
	result platform.SendResult
	err    error
}

func (s *fakeSender) SendText(_ context.Context, chatID, text string) (platform.SendResult, error) {
	if s.err != nil {
		return platform.SendResult{}, s.err
	}
	s.chatID = chatID
	s.sent = append(s.sent, text)
	return s.result, nil
}

// fakeMaterializer returns a fixed descriptor.
type fakeMaterializer struct {
	desc  store.Attachment
	calls int
}

func (m *fakeMaterializer) Materialize(_ context.Context, _ platform.Event) store.Attachment {
	m.calls++
	return m.desc
}

// fakeSource serves canned chats and history.
type fakeSource struct {
	chats   []platform.Chat
	history map[string][]platform.Event
	err     error
}

func (s *fakeSource) Chats(_ context.Context) ([]platform.Chat, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.chats, nil
}

func (s *fakeSource) RecentMessages(_ context.Context, chatID string, _ int) ([]platform.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.history[chatID], nil
}
