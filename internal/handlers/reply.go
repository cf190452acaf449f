package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// replyControl toggles the auto-reply orchestrator at runtime.
type replyControl interface {
	Enabled() bool
	SetEnabled(on bool)
}

// ReplyHandler exposes the auto-reply toggle.
type ReplyHandler struct {
	control replyControl
	logger  *slog.Logger
}

func NewReplyHandler(log *slog.Logger, control replyControl) *ReplyHandler {
	return &ReplyHandler{
		control: control,
		logger:  log.With(slog.String("handler", "reply")),
	}
}

func (h *ReplyHandler) Register(e *echo.Echo) {
	e.GET("/api/reply", h.Get)
	e.PUT("/api/reply", h.Set)
}

type replyState struct {
	Enabled bool `json:"enabled"`
}

func (h *ReplyHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, replyState{Enabled: h.control.Enabled()})
}

func (h *ReplyHandler) Set(c echo.Context) error {
	var req replyState
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.control.SetEnabled(req.Enabled)
	h.logger.Info("auto-reply toggled", slog.Bool("enabled", req.Enabled))
	return c.JSON(http.StatusOK, replyState{Enabled: h.control.Enabled()})
}
