package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/chatsinkai/chatsink/internal/platform"
)

// HistorySource is the platform surface reconciliation reads from.
type HistorySource interface {
	Chats(ctx context.Context) ([]platform.Chat, error)
	RecentMessages(ctx context.Context, chatID string, limit int) ([]platform.Event, error)
}

// Result summarizes one reconciliation pass over a conversation.
type Result struct {
	ConversationID string `json:"conversationId"`
	Fetched        int    `json:"fetched"`
	Ingested       int    `json:"ingested"`
	Skipped        int    `json:"skipped"`
	Failed         int    `json:"failed"`
}

// Reconciler backfills messages the live stream missed by comparing a
// recent platform window against the store and ingesting only the
// difference. Reconciliation never triggers auto-replies: the messages may
// be arbitrarily old.
type Reconciler struct {
	source       HistorySource
	gateway      Gateway
	materializer Materializer
	logger       *slog.Logger

	fetchWindow int
	parallel    int
}

// NewReconciler creates a Reconciler. fetchWindow is how many recent
// messages to pull per conversation; parallel bounds concurrent
// conversations in ReconcileAll.
func NewReconciler(log *slog.Logger, source HistorySource, gw Gateway, mat Materializer, fetchWindow, parallel int) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	if fetchWindow <= 0 {
		fetchWindow = 30
	}
	if parallel <= 0 {
		parallel = 1
	}
	return &Reconciler{
		source:       source,
		gateway:      gw,
		materializer: mat,
		logger:       log.With(slog.String("service", "reconcile")),
		fetchWindow:  fetchWindow,
		parallel:     parallel,
	}
}

// Reconcile ingests the messages of one conversation that the store does
// not have yet. Individual message failures are counted, not fatal; a
// second pass picks them up.
func (r *Reconciler) Reconcile(ctx context.Context, chat platform.Chat) (Result, error) {
	res := Result{ConversationID: chat.ID}

	events, err := r.source.RecentMessages(ctx, chat.ID, r.fetchWindow)
	if err != nil {
		return res, fmt.Errorf("fetch history for %s: %w", chat.ID, err)
	}
	res.Fetched = len(events)

	// Metadata refreshes once per pass even when the window is empty.
	if err := r.gateway.UpsertConversation(ctx, NormalizeConversation(chat)); err != nil {
		return res, fmt.Errorf("persist conversation %s: %w", chat.ID, err)
	}
	if len(events) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.MessageID)
	}
	existing, err := r.gateway.ExistingMessageIDs(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("dedup check for %s: %w", chat.ID, err)
	}

	for _, ev := range events {
		if _, seen := existing[ev.MessageID]; seen {
			res.Skipped++
			continue
		}
		if err := r.ingestOne(ctx, ev, chat); err != nil {
			res.Failed++
			r.logger.Warn("reconcile message failed",
				slog.String("conversation_id", chat.ID),
				slog.String("message_id", ev.MessageID),
				slog.Any("error", err))
			continue
		}
		res.Ingested++
	}

	r.logger.Info("conversation reconciled",
		slog.String("conversation_id", chat.ID),
		slog.Int("fetched", res.Fetched),
		slog.Int("ingested", res.Ingested),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed))
	return res, nil
}

func (r *Reconciler) ingestOne(ctx context.Context, ev platform.Event, chat platform.Chat) error {
	msg := Normalize(ev, chat)
	if ev.HasAttachment {
		att := r.materializer.Materialize(ctx, ev)
		msg.Attachment = &att
	}
	if err := r.gateway.UpsertMessage(ctx, msg); err != nil {
		return err
	}
	return r.gateway.IncrementRollup(ctx, msg.ConversationID, msg.SentAt)
}

// ReconcileAll reconciles every known conversation with bounded
// parallelism and returns the per-conversation results. A failing
// conversation does not stop the others.
func (r *Reconciler) ReconcileAll(ctx context.Context) ([]Result, error) {
	chats, err := r.source.Chats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	results := make([]Result, len(chats))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, chat := range chats {
		g.Go(func() error {
			res, err := r.Reconcile(ctx, chat)
			if err != nil {
				r.logger.Error("conversation reconcile failed",
					slog.String("conversation_id", chat.ID),
					slog.Any("error", err))
				res.ConversationID = chat.ID
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}
