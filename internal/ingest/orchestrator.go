package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/chatsinkai/chatsink/internal/ai"
	"github.com/chatsinkai/chatsink/internal/platform"
	"github.com/chatsinkai/chatsink/internal/store"
)

// Reply classifications recorded on the triggering message.
const (
	ClassGroupTriggered = "group_triggered"
	ClassIndividualAuto = "individual_auto"
)

// Completer produces a reply for a conversation context.
type Completer interface {
	Complete(ctx context.Context, turns []ai.Turn) (string, error)
}

// TextSender delivers outbound text to the platform.
type TextSender interface {
	SendText(ctx context.Context, chatID, text string) (platform.SendResult, error)
}

// Orchestrator decides whether a freshly persisted inbound message gets an
// automated reply, generates it over bounded conversation context, sends
// it, persists the outbound turn, and back-annotates the trigger. It never
// fails the ingestion path: every error is absorbed and logged.
type Orchestrator struct {
	gateway Gateway
	ai      Completer
	sender  TextSender
	matcher TriggerMatcher
	logger  *slog.Logger

	window  int
	enabled atomic.Bool
}

// NewOrchestrator creates an Orchestrator. window bounds the conversation
// context sent to the completion backend.
func NewOrchestrator(log *slog.Logger, gw Gateway, completer Completer, sender TextSender, matcher TriggerMatcher, window int, enabled bool) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		gateway: gw,
		ai:      completer,
		sender:  sender,
		matcher: matcher,
		logger:  log.With(slog.String("service", "reply")),
		window:  window,
	}
	o.enabled.Store(enabled)
	return o
}

// Enabled reports whether auto-reply is currently on.
func (o *Orchestrator) Enabled() bool { return o.enabled.Load() }

// SetEnabled toggles auto-reply at runtime.
func (o *Orchestrator) SetEnabled(on bool) { o.enabled.Store(on) }

// MaybeReply runs the full reply flow for a message that was just
// persisted. Outbound messages and non-triggering group messages are
// skipped.
func (o *Orchestrator) MaybeReply(ctx context.Context, msg store.Message, chat platform.Chat) {
	if !o.enabled.Load() || msg.Outbound {
		return
	}

	classification := ClassIndividualAuto
	var matched []string
	if chat.IsGroup {
		var ok bool
		matched, ok = o.matcher.Match(msg.Body)
		if !ok {
			return
		}
		classification = ClassGroupTriggered
	}

	log := o.logger.With(
		slog.String("conversation_id", msg.ConversationID),
		slog.String("message_id", msg.MessageID))

	text := o.generate(ctx, msg, chat, log)

	sent, err := o.sender.SendText(ctx, msg.ConversationID, text)
	if err != nil {
		// The reply record is still written so the intended reply stays
		// visible in history.
		log.Error("send reply failed", slog.Any("error", err))
	}

	now := time.Now().UTC()
	outbound := store.Message{
		MessageID:      sent.MessageID,
		ConversationID: msg.ConversationID,
		From:           msg.To,
		To:             msg.From,
		Body:           text,
		Kind:           store.KindText,
		SentAt:         sent.SentAt,
		Outbound:       true,
	}
	if outbound.MessageID == "" {
		// The platform did not echo an ID; a synthetic one keeps the
		// record unique without colliding with later redeliveries.
		outbound.MessageID = "generated-" + uuid.NewString()
	}
	if outbound.SentAt.IsZero() {
		outbound.SentAt = now
	}
	if err := o.gateway.UpsertMessage(ctx, outbound); err != nil {
		log.Error("persist reply failed", slog.Any("error", err))
	} else if err := o.gateway.IncrementRollup(ctx, outbound.ConversationID, outbound.SentAt); err != nil {
		log.Error("rollup reply failed", slog.Any("error", err))
	}

	annotation := store.GeneratedReply{
		Text:            text,
		TriggeredAt:     now,
		MatchedTriggers: matched,
		Classification:  classification,
	}
	if err := o.gateway.AttachGeneratedReply(ctx, msg.MessageID, annotation); err != nil {
		log.Error("annotate trigger failed", slog.Any("error", err))
	}
}

// generate assembles bounded context and asks the completion backend,
// falling back to a canned reply so the contact is never left hanging.
func (o *Orchestrator) generate(ctx context.Context, msg store.Message, chat platform.Chat, log *slog.Logger) string {
	turns := []ai.Turn{ai.SystemPrompt(chat.IsGroup)}

	history, err := o.gateway.RecordsInConversation(ctx, msg.ConversationID, o.window)
	if err != nil {
		log.Warn("load reply context failed", slog.Any("error", err))
		// Degrade to just the triggering message.
		history = []store.Message{msg}
	}
	turns = append(turns, BuildContext(history, o.window)...)

	text, err := o.ai.Complete(ctx, turns)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyCompletion) {
			log.Warn("completion came back empty")
		} else {
			log.Error("completion failed", slog.Any("error", err))
		}
		return ai.FallbackReply
	}
	return text
}
