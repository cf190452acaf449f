package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chatsinkai/chatsink/internal/platform"
	"github.com/chatsinkai/chatsink/internal/store"
)

type fakeReplyControl struct {
	enabled bool
}

func (c *fakeReplyControl) Enabled() bool      { return c.enabled }
func (c *fakeReplyControl) SetEnabled(on bool) { c.enabled = on }

type fakeHistoryStore struct {
	conversations []store.Conversation
	messages      []store.Message
	err           error
	deleted       int64
	cutoff        time.Time
}

func (s *fakeHistoryStore) ListConversations(_ context.Context, _, _ int) ([]store.Conversation, error) {
	return s.conversations, s.err
}

func (s *fakeHistoryStore) GetConversation(_ context.Context, id string) (store.Conversation, error) {
	if s.err != nil {
		return store.Conversation{}, s.err
	}
	for _, c := range s.conversations {
		if c.ConversationID == id {
			return c, nil
		}
	}
	return store.Conversation{}, store.ErrNotFound
}

func (s *fakeHistoryStore) RecordsInConversation(_ context.Context, _ string, _ int) ([]store.Message, error) {
	return s.messages, s.err
}

func (s *fakeHistoryStore) MessageByID(_ context.Context, id string) (store.Message, error) {
	if s.err != nil {
		return store.Message{}, s.err
	}
	for _, m := range s.messages {
		if m.MessageID == id {
			return m, nil
		}
	}
	return store.Message{}, store.ErrNotFound
}

func (s *fakeHistoryStore) SearchMessages(_ context.Context, _ string, _ store.SearchOptions) ([]store.Message, error) {
	return s.messages, s.err
}

func (s *fakeHistoryStore) ConversationStats(_ context.Context, _ string) (store.ConversationStats, error) {
	return store.ConversationStats{TotalMessages: int64(len(s.messages))}, s.err
}

func (s *fakeHistoryStore) DeleteOldMessages(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.deleted, s.err
}

type fakeTextSender struct {
	chatID string
	text   string
	err    error
}

func (s *fakeTextSender) SendText(_ context.Context, chatID, text string) (platform.SendResult, error) {
	if s.err != nil {
		return platform.SendResult{}, s.err
	}
	s.chatID = chatID
	s.text = text
	return platform.SendResult{MessageID: "out-1", SentAt: time.Now().UTC()}, nil
}

type fakeSendStore struct {
	messages []store.Message
	rollups  int
}

func (s *fakeSendStore) UpsertMessage(_ context.Context, m store.Message) error {
	s.messages = append(s.messages, m)
	return nil
}

func (s *fakeSendStore) IncrementRollup(_ context.Context, _ string, _ time.Time) error {
	s.rollups++
	return nil
}

func doRequest(h interface{ Register(e *echo.Echo) }, method, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	h.Register(e)
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestReplyToggle(t *testing.T) {
	control := &fakeReplyControl{enabled: true}
	h := NewReplyHandler(slog.Default(), control)

	rec := doRequest(h, http.MethodGet, "/api/reply", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var state replyState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !state.Enabled {
		t.Fatal("expected enabled")
	}

	rec = doRequest(h, http.MethodPut, "/api/reply", `{"enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d", rec.Code)
	}
	if control.enabled {
		t.Fatal("toggle did not reach the orchestrator")
	}
}

func TestSendValidation(t *testing.T) {
	h := NewSendHandler(slog.Default(), &fakeTextSender{}, &fakeSendStore{})

	rec := doRequest(h, http.MethodPost, "/api/messages", `{"text":"hola"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing conversationId status = %d", rec.Code)
	}
	rec = doRequest(h, http.MethodPost, "/api/messages", `{"conversationId":"111@c.us"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing text status = %d", rec.Code)
	}
}

func TestSendPersistsOutbound(t *testing.T) {
	sender := &fakeTextSender{}
	st := &fakeSendStore{}
	h := NewSendHandler(slog.Default(), sender, st)

	rec := doRequest(h, http.MethodPost, "/api/messages",
		`{"conversationId":"111@c.us","text":"hola"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if sender.chatID != "111@c.us" || sender.text != "hola" {
		t.Fatalf("sender got %q %q", sender.chatID, sender.text)
	}
	if len(st.messages) != 1 || !st.messages[0].Outbound {
		t.Fatalf("persisted = %+v", st.messages)
	}
	if st.rollups != 1 {
		t.Fatalf("rollups = %d", st.rollups)
	}
}

func TestSendGatewayFailure(t *testing.T) {
	sender := &fakeTextSender{err: errors.New("gateway offline")}
	st := &fakeSendStore{}
	h := NewSendHandler(slog.Default(), sender, st)

	rec := doRequest(h, http.MethodPost, "/api/messages",
		`{"conversationId":"111@c.us","text":"hola"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(st.messages) != 0 {
		t.Fatal("failed send was persisted")
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	h := NewMessagesHandler(slog.Default(), &fakeHistoryStore{})
	rec := doRequest(h, http.MethodGet, "/api/messages/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSearchReturnsMessages(t *testing.T) {
	st := &fakeHistoryStore{messages: []store.Message{{MessageID: "m1", Body: "hola"}}}
	h := NewMessagesHandler(slog.Default(), st)

	rec := doRequest(h, http.MethodGet, "/api/messages/search?q=hola", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var msgs []store.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 1 || msgs[0].MessageID != "m1" {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestPingReportsServiceIdentity(t *testing.T) {
	h := NewPingHandler(slog.Default(), "1.2.3")
	rec := doRequest(h, http.MethodGet, "/ping", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["service"] != "chatsink" || body["version"] != "1.2.3" {
		t.Fatalf("body = %v", body)
	}

	rec = doRequest(h, http.MethodHead, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestGetMessageByID(t *testing.T) {
	st := &fakeHistoryStore{messages: []store.Message{{MessageID: "m1", Body: "hola"}}}
	h := NewMessagesHandler(slog.Default(), st)

	rec := doRequest(h, http.MethodGet, "/api/messages/m1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var msg store.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.MessageID != "m1" {
		t.Fatalf("message = %+v", msg)
	}

	rec = doRequest(h, http.MethodGet, "/api/messages/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	h := NewMessagesHandler(slog.Default(), &fakeHistoryStore{})
	rec := doRequest(h, http.MethodGet, "/api/conversations/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	st := &fakeHistoryStore{err: store.ErrUnavailable}
	h := NewMessagesHandler(slog.Default(), st)
	rec := doRequest(h, http.MethodGet, "/api/conversations", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCleanupValidatesAge(t *testing.T) {
	h := NewMessagesHandler(slog.Default(), &fakeHistoryStore{})
	rec := doRequest(h, http.MethodDelete, "/api/messages", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCleanupDeletesOldMessages(t *testing.T) {
	st := &fakeHistoryStore{deleted: 42}
	h := NewMessagesHandler(slog.Default(), st)

	rec := doRequest(h, http.MethodDelete, "/api/messages?olderThanDays=90", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp cleanupResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Deleted != 42 {
		t.Fatalf("deleted = %d", resp.Deleted)
	}
	wantCutoff := time.Now().UTC().AddDate(0, 0, -90)
	if st.cutoff.Before(wantCutoff.Add(-time.Minute)) || st.cutoff.After(wantCutoff.Add(time.Minute)) {
		t.Fatalf("cutoff = %v", st.cutoff)
	}
}
