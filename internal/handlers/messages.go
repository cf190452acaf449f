package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chatsinkai/chatsink/internal/store"
)

// historyStore is the read and maintenance surface of the message store.
type historyStore interface {
	ListConversations(ctx context.Context, limit, skip int) ([]store.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (store.Conversation, error)
	RecordsInConversation(ctx context.Context, conversationID string, limit int) ([]store.Message, error)
	MessageByID(ctx context.Context, messageID string) (store.Message, error)
	SearchMessages(ctx context.Context, query string, opts store.SearchOptions) ([]store.Message, error)
	ConversationStats(ctx context.Context, conversationID string) (store.ConversationStats, error)
	DeleteOldMessages(ctx context.Context, cutoff time.Time) (int64, error)
}

// MessagesHandler serves persisted conversations and messages.
type MessagesHandler struct {
	store  historyStore
	logger *slog.Logger
}

func NewMessagesHandler(log *slog.Logger, st historyStore) *MessagesHandler {
	return &MessagesHandler{
		store:  st,
		logger: log.With(slog.String("handler", "messages")),
	}
}

func (h *MessagesHandler) Register(e *echo.Echo) {
	e.GET("/api/conversations", h.ListConversations)
	e.GET("/api/conversations/:id", h.GetConversation)
	e.GET("/api/conversations/:id/messages", h.ConversationMessages)
	e.GET("/api/conversations/:id/stats", h.ConversationStats)
	e.GET("/api/messages/search", h.Search)
	e.GET("/api/messages/:id", h.GetMessage)
	e.DELETE("/api/messages", h.Cleanup)
}

func (h *MessagesHandler) ListConversations(c echo.Context) error {
	limit := intQuery(c, "limit", 100)
	skip := intQuery(c, "skip", 0)
	convs, err := h.store.ListConversations(c.Request().Context(), limit, skip)
	if err != nil {
		return storeError(err)
	}
	if convs == nil {
		convs = []store.Conversation{}
	}
	return c.JSON(http.StatusOK, convs)
}

func (h *MessagesHandler) GetConversation(c echo.Context) error {
	conv, err := h.store.GetConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *MessagesHandler) ConversationMessages(c echo.Context) error {
	limit := intQuery(c, "limit", 50)
	msgs, err := h.store.RecordsInConversation(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return storeError(err)
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *MessagesHandler) GetMessage(c echo.Context) error {
	msg, err := h.store.MessageByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *MessagesHandler) ConversationStats(c echo.Context) error {
	stats, err := h.store.ConversationStats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *MessagesHandler) Search(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	opts := store.SearchOptions{
		ConversationID: c.QueryParam("conversationId"),
		Limit:          intQuery(c, "limit", 50),
		Skip:           intQuery(c, "skip", 0),
	}
	if v := c.QueryParam("outbound"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "outbound must be a boolean")
		}
		opts.Outbound = &b
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be RFC 3339")
		}
		opts.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be RFC 3339")
		}
		opts.To = &t
	}

	msgs, err := h.store.SearchMessages(c.Request().Context(), query, opts)
	if err != nil {
		return storeError(err)
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

type cleanupResponse struct {
	Deleted int64     `json:"deleted"`
	Cutoff  time.Time `json:"cutoff"`
}

// Cleanup deletes messages older than the given number of days. Messages
// carrying an auto-reply annotation are kept.
func (h *MessagesHandler) Cleanup(c echo.Context) error {
	days := intQuery(c, "olderThanDays", 0)
	if days <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "olderThanDays must be a positive integer")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := h.store.DeleteOldMessages(c.Request().Context(), cutoff)
	if err != nil {
		return storeError(err)
	}
	h.logger.Info("old messages deleted",
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff))
	return c.JSON(http.StatusOK, cleanupResponse{Deleted: deleted, Cutoff: cutoff})
}

func intQuery(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
