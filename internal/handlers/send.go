package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chatsinkai/chatsink/internal/platform"
	"github.com/chatsinkai/chatsink/internal/store"
)

// textSender delivers outbound text to the platform.
type textSender interface {
	SendText(ctx context.Context, chatID, text string) (platform.SendResult, error)
}

// sendStore persists the outbound record so manual sends show up in
// history and rollups like any other message.
type sendStore interface {
	UpsertMessage(ctx context.Context, m store.Message) error
	IncrementRollup(ctx context.Context, conversationID string, sentAt time.Time) error
}

// SendHandler lets operators send a message through the platform.
type SendHandler struct {
	sender textSender
	store  sendStore
	logger *slog.Logger
}

func NewSendHandler(log *slog.Logger, sender textSender, st sendStore) *SendHandler {
	return &SendHandler{
		sender: sender,
		store:  st,
		logger: log.With(slog.String("handler", "send")),
	}
}

func (h *SendHandler) Register(e *echo.Echo) {
	e.POST("/api/messages", h.Send)
}

type sendRequest struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
}

type sendResponse struct {
	MessageID string    `json:"messageId"`
	SentAt    time.Time `json:"sentAt"`
}

func (h *SendHandler) Send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversationId is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	ctx := c.Request().Context()
	res, err := h.sender.SendText(ctx, req.ConversationID, req.Text)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if res.MessageID == "" {
		res.MessageID = "manual-" + uuid.NewString()
	}
	if res.SentAt.IsZero() {
		res.SentAt = time.Now().UTC()
	}

	msg := store.Message{
		MessageID:      res.MessageID,
		ConversationID: req.ConversationID,
		To:             req.ConversationID,
		Body:           req.Text,
		Kind:           store.KindText,
		SentAt:         res.SentAt,
		Outbound:       true,
	}
	if err := h.store.UpsertMessage(ctx, msg); err != nil {
		// The message left the platform already; history will catch up on
		// the next reconciliation.
		h.logger.Error("persist sent message failed",
			slog.String("message_id", res.MessageID),
			slog.Any("error", err))
	} else if err := h.store.IncrementRollup(ctx, req.ConversationID, res.SentAt); err != nil {
		h.logger.Error("rollup sent message failed",
			slog.String("conversation_id", req.ConversationID),
			slog.Any("error", err))
	}

	return c.JSON(http.StatusOK, sendResponse{MessageID: res.MessageID, SentAt: res.SentAt})
}
