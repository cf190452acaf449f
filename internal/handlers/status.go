package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatsinkai/chatsink/internal/store"
)

// statusStore is the store surface the status endpoint reads.
type statusStore interface {
	Ping(ctx context.Context) error
	GlobalStats(ctx context.Context) (store.GlobalStats, error)
}

// gatewayStatus reports the platform event stream state.
type gatewayStatus interface {
	Connected() bool
}

// replyStatus reports the auto-reply toggle.
type replyStatus interface {
	Enabled() bool
}

// StatusHandler reports overall service health and store totals.
type StatusHandler struct {
	store   statusStore
	gateway gatewayStatus
	reply   replyStatus
	logger  *slog.Logger
}

func NewStatusHandler(log *slog.Logger, st statusStore, gw gatewayStatus, reply replyStatus) *StatusHandler {
	return &StatusHandler{
		store:   st,
		gateway: gw,
		reply:   reply,
		logger:  log.With(slog.String("handler", "status")),
	}
}

func (h *StatusHandler) Register(e *echo.Echo) {
	e.GET("/api/status", h.Status)
}

type statusResponse struct {
	GatewayConnected bool               `json:"gatewayConnected"`
	StoreReachable   bool               `json:"storeReachable"`
	ReplyEnabled     bool               `json:"replyEnabled"`
	Stats            *store.GlobalStats `json:"stats,omitempty"`
}

func (h *StatusHandler) Status(c echo.Context) error {
	ctx := c.Request().Context()
	resp := statusResponse{
		GatewayConnected: h.gateway.Connected(),
		ReplyEnabled:     h.reply.Enabled(),
	}
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("store unreachable", slog.Any("error", err))
		return c.JSON(http.StatusOK, resp)
	}
	resp.StoreReachable = true
	stats, err := h.store.GlobalStats(ctx)
	if err != nil {
		h.logger.Warn("global stats failed", slog.Any("error", err))
		return c.JSON(http.StatusOK, resp)
	}
	resp.Stats = &stats
	return c.JSON(http.StatusOK, resp)
}
