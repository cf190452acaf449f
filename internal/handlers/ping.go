package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// PingHandler answers liveness checks with service identity. Unlike
// /api/status it never touches the store or the gateway, so it stays
// cheap enough for tight check intervals.
type PingHandler struct {
	version string
	logger  *slog.Logger
}

func NewPingHandler(log *slog.Logger, version string) *PingHandler {
	return &PingHandler{
		version: version,
		logger:  log.With(slog.String("handler", "ping")),
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.Health)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "chatsink",
		"version": h.version,
	})
}

func (h *PingHandler) Health(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
