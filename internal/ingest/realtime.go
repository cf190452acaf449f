package ingest

import (
	"context"
	"log/slog"

	"github.com/chatsinkai/chatsink/internal/platform"
	"github.com/chatsinkai/chatsink/internal/store"
)

// Materializer downloads and stores a message attachment, reporting the
// outcome as a descriptor rather than an error.
type Materializer interface {
	Materialize(ctx context.Context, ev platform.Event) store.Attachment
}

// Realtime ingests live platform events one at a time. It consults the
// gateway before doing any work, so a message that arrived both live and
// through reconciliation is only processed once.
type Realtime struct {
	gateway      Gateway
	materializer Materializer
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewRealtime creates the live event handler.
func NewRealtime(log *slog.Logger, gw Gateway, mat Materializer, orch *Orchestrator) *Realtime {
	if log == nil {
		log = slog.Default()
	}
	return &Realtime{
		gateway:      gw,
		materializer: mat,
		orchestrator: orch,
		logger:       log.With(slog.String("handler", "realtime")),
	}
}

// HandleInbound processes one live event. Errors are absorbed: a failed
// event is dropped here and recovered by the next reconciliation pass.
func (r *Realtime) HandleInbound(ctx context.Context, in platform.Inbound) {
	ev, chat := in.Event, in.Chat
	log := r.logger.With(
		slog.String("message_id", ev.MessageID),
		slog.String("conversation_id", chat.ID))

	existing, err := r.gateway.ExistingMessageIDs(ctx, []string{ev.MessageID})
	if err != nil {
		log.Error("dedup check failed, dropping event", slog.Any("error", err))
		return
	}
	if _, seen := existing[ev.MessageID]; seen {
		log.Debug("duplicate event skipped")
		return
	}

	msg := Normalize(ev, chat)
	if ev.HasAttachment {
		att := r.materializer.Materialize(ctx, ev)
		msg.Attachment = &att
	}

	if err := r.gateway.UpsertMessage(ctx, msg); err != nil {
		// Without the message record, rollups and replies would refer to
		// state the store never saw.
		log.Error("persist message failed", slog.Any("error", err))
		return
	}
	if err := r.gateway.UpsertConversation(ctx, NormalizeConversation(chat)); err != nil {
		log.Error("persist conversation failed", slog.Any("error", err))
	}
	if err := r.gateway.IncrementRollup(ctx, msg.ConversationID, msg.SentAt); err != nil {
		log.Error("rollup update failed", slog.Any("error", err))
	}

	r.orchestrator.MaybeReply(ctx, msg, chat)
}
