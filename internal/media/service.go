package media

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/chatsinkai/chatsink/internal/platform"
	"github.com/chatsinkai/chatsink/internal/store"
)

// AttachmentFetcher fetches attachment payloads from the messaging platform.
type AttachmentFetcher interface {
	DownloadAttachment(ctx context.Context, messageID string) (platform.Attachment, error)
}

// Materializer downloads message attachments and writes them to blob
// storage. Failures are recorded on the returned descriptor, never
// propagated: a broken download must not block message persistence.
type Materializer struct {
	fetcher AttachmentFetcher
	storage StorageProvider
	logger  *slog.Logger
}

// NewMaterializer creates a Materializer.
func NewMaterializer(log *slog.Logger, fetcher AttachmentFetcher, storage StorageProvider) *Materializer {
	if log == nil {
		log = slog.Default()
	}
	return &Materializer{
		fetcher: fetcher,
		storage: storage,
		logger:  log.With(slog.String("service", "media")),
	}
}

// Materialize downloads the event's attachment and stores it. The returned
// descriptor always reflects the outcome; on failure Success is false and
// Error holds the cause.
func (m *Materializer) Materialize(ctx context.Context, ev platform.Event) store.Attachment {
	desc := store.Attachment{
		OriginalName:   ev.FileName,
		MimeType:       ev.MimeType,
		MaterializedAt: time.Now().UTC(),
	}

	att, err := m.fetcher.DownloadAttachment(ctx, ev.MessageID)
	if err != nil {
		m.logger.Warn("attachment download failed",
			slog.String("message_id", ev.MessageID),
			slog.Any("error", err))
		desc.StoredName = blobName(ev.SentAt, ev.MessageID, ev.MimeType)
		desc.Error = fmt.Sprintf("download: %v", err)
		return desc
	}
	defer func() {
		_ = att.Data.Close()
	}()
	if att.MimeType != "" {
		desc.MimeType = att.MimeType
	}
	if att.FileName != "" {
		desc.OriginalName = att.FileName
	}

	// The name is derived after the fetch so the extension follows the
	// MIME type the bridge actually served, not the declared one.
	name := blobName(ev.SentAt, ev.MessageID, desc.MimeType)
	desc.StoredName = name

	key := string(store.NormalizeKind(ev.Kind)) + "/" + name
	size, err := m.storage.Put(ctx, key, att.Data)
	if err != nil {
		m.logger.Warn("attachment store failed",
			slog.String("message_id", ev.MessageID),
			slog.String("key", key),
			slog.Any("error", err))
		desc.Error = fmt.Sprintf("store: %v", err)
		return desc
	}

	desc.ByteSize = size
	desc.StorageKey = key
	desc.AccessPath = m.storage.AccessPath(key)
	desc.Success = true
	return desc
}

// blobName derives a stable blob filename from the message timestamp and ID.
// The timestamp keeps directory listings chronological; the message ID makes
// the name collision-free and re-materialization idempotent.
func blobName(sentAt time.Time, messageID, mimeType string) string {
	ts := sentAt.UTC().Format(time.RFC3339)
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return ts + "_" + messageID + "." + extensionFor(mimeType)
}

// extensionFor maps a MIME type to a filename extension, falling back to
// "bin" for anything unparseable.
func extensionFor(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil || mt == "" {
		// Best effort on malformed values like "image/jpeg;" fragments.
		mt = strings.TrimSpace(strings.Split(mimeType, ";")[0])
	}
	if i := strings.Index(mt, "/"); i >= 0 && i+1 < len(mt) {
		sub := mt[i+1:]
		if sub != "" {
			return sub
		}
	}
	return "bin"
}
