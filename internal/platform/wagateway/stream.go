package wagateway

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatsinkai/chatsink/internal/platform"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	readTimeout    = 90 * time.Second
)

// eventEnvelope is one frame on the sidecar's event socket.
type eventEnvelope struct {
	Type    string          `json:"type"`
	Message *messagePayload `json:"message,omitempty"`
	Chat    *chatPayload    `json:"chat,omitempty"`
}

type stream struct {
	connected atomic.Bool
	done      chan struct{}
}

// Connected reports whether the live event stream currently holds an open
// websocket to the sidecar.
func (c *Client) Connected() bool {
	if c.stream == nil {
		return false
	}
	return c.stream.connected.Load()
}

// Connect starts the live event loop. It dials the sidecar's websocket,
// redialing with exponential backoff on failure, and dispatches each message
// event to the handler on its own goroutine. Connect returns immediately;
// the loop stops when ctx is cancelled.
func (c *Client) Connect(ctx context.Context, handler platform.Handler) {
	s := &stream{done: make(chan struct{})}
	c.stream = s
	go c.runStream(ctx, s, handler)
}

func (c *Client) runStream(ctx context.Context, s *stream, handler platform.Handler) {
	defer close(s.done)
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("event stream dial failed",
				slog.Any("error", err),
				slog.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.logger.Info("event stream connected")
		s.connected.Store(true)
		backoff = initialBackoff
		c.readLoop(ctx, conn, handler)
		s.connected.Store(false)
		_ = conn.Close()
		c.logger.Info("event stream disconnected")
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/events"
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, handler platform.Handler) {
	// Unblock ReadJSON when the context is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		var env eventEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("event stream read failed", slog.Any("error", err))
			}
			return
		}
		if env.Type != "message" || env.Message == nil {
			continue
		}
		event := toEvent(*env.Message)
		chat := resolveEventChat(env, event)
		go handler.HandleInbound(ctx, platform.Inbound{Event: event, Chat: chat})
	}
}

// resolveEventChat prefers the chat context embedded in the frame; bridges
// that omit it get a minimal chat derived from the event itself.
func resolveEventChat(env eventEnvelope, event platform.Event) platform.Chat {
	if env.Chat != nil {
		return toChat(*env.Chat)
	}
	// Name stays empty so a degraded frame never overwrites a display
	// name learned from a richer source.
	return platform.Chat{
		ID:      event.ChatID,
		IsGroup: strings.HasSuffix(event.ChatID, "@g.us"),
	}
}
