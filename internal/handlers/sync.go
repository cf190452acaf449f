package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/chatsinkai/chatsink/internal/ingest"
	"github.com/chatsinkai/chatsink/internal/platform"
)

// reconciler runs history reconciliation on demand.
type reconciler interface {
	Reconcile(ctx context.Context, chat platform.Chat) (ingest.Result, error)
	ReconcileAll(ctx context.Context) ([]ingest.Result, error)
}

// chatResolver resolves chat context for targeted reconciliation.
type chatResolver interface {
	ChatInfo(ctx context.Context, chatID string) (platform.Chat, error)
}

// SyncHandler triggers reconciliation passes over the HTTP surface.
type SyncHandler struct {
	reconciler reconciler
	chats      chatResolver
	logger     *slog.Logger
}

func NewSyncHandler(log *slog.Logger, rec reconciler, chats chatResolver) *SyncHandler {
	return &SyncHandler{
		reconciler: rec,
		chats:      chats,
		logger:     log.With(slog.String("handler", "sync")),
	}
}

func (h *SyncHandler) Register(e *echo.Echo) {
	e.POST("/api/sync", h.SyncAll)
	e.POST("/api/sync/:id", h.SyncConversation)
}

func (h *SyncHandler) SyncAll(c echo.Context) error {
	results, err := h.reconciler.ReconcileAll(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}

func (h *SyncHandler) SyncConversation(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation id is required")
	}
	ctx := c.Request().Context()
	chat, err := h.chats.ChatInfo(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	result, err := h.reconciler.Reconcile(ctx, chat)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
