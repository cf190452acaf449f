package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	messagesCollection      = "messages"
	conversationsCollection = "conversations"

	defaultSearchLimit = 50
)

// Mongo is the MongoDB-backed gateway implementation. All mutation goes
// through the store's native atomic upsert and update operators; the
// application never does read-modify-write.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// Open connects to MongoDB, verifies reachability, and ensures the indexes
// the gateway's invariants depend on (unique messageId / conversationId).
func Open(ctx context.Context, log *slog.Logger, uri, database string) (*Mongo, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	s := &Mongo{
		client: client,
		db:     client.Database(database),
		logger: log.With(slog.String("service", "store")),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// Close disconnects from MongoDB.
func (s *Mongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping reports whether the store is reachable.
func (s *Mongo) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Mongo) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		messagesCollection: {
			{
				Keys:    bson.D{{Key: "messageId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "sentAt", Value: -1}}},
			{Keys: bson.D{{Key: "outbound", Value: 1}, {Key: "sentAt", Value: -1}}},
		},
		conversationsCollection: {
			{
				Keys:    bson.D{{Key: "conversationId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "rollup.lastMessageAt", Value: -1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func (s *Mongo) messages() *mongo.Collection      { return s.db.Collection(messagesCollection) }
func (s *Mongo) conversations() *mongo.Collection { return s.db.Collection(conversationsCollection) }

// UpsertMessage writes a message by messageId with upsert semantics.
// Re-applying the same record is a no-op beyond the updatedAt refresh.
// An existing generatedReply annotation is never clobbered: the reply field
// is owned by AttachGeneratedReply.
func (s *Mongo) UpsertMessage(ctx context.Context, m Message) error {
	now := time.Now().UTC()
	set := bson.M{
		"conversationId": m.ConversationID,
		"from":           m.From,
		"to":             m.To,
		"authorId":       m.AuthorID,
		"body":           m.Body,
		"kind":           m.Kind,
		"sentAt":         m.SentAt,
		"outbound":       m.Outbound,
		"updatedAt":      now,
	}
	if m.Attachment != nil {
		set["attachment"] = m.Attachment
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"messageId": m.MessageID, "createdAt": now},
	}
	_, err := s.messages().UpdateOne(ctx,
		bson.M{"messageId": m.MessageID},
		update,
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Concurrent writers raced the upsert; the record already
			// holds the same content.
			return nil
		}
		return s.unavailable("upsert message", err)
	}
	return nil
}

// ExistingMessageIDs returns the subset of candidate IDs already persisted,
// as a single batched lookup.
func (s *Mongo) ExistingMessageIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	cur, err := s.messages().Find(ctx,
		bson.M{"messageId": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"messageId": 1, "_id": 0}),
	)
	if err != nil {
		return nil, s.unavailable("existing message ids", err)
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	for cur.Next(ctx) {
		var doc struct {
			MessageID string `bson:"messageId"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message id: %w", err)
		}
		existing[doc.MessageID] = struct{}{}
	}
	if err := cur.Err(); err != nil {
		return nil, s.unavailable("existing message ids", err)
	}
	return existing, nil
}

// conversationUpdate builds the upsert document for conversation metadata.
// An empty displayName is omitted from $set: events arriving without chat
// context must not blank out a name learned from a catalog sync.
func conversationUpdate(c Conversation, now time.Time) bson.M {
	set := bson.M{
		"isGroup":     c.IsGroup,
		"archived":    c.Archived,
		"pinned":      c.Pinned,
		"unreadCount": c.UnreadCount,
		"updatedAt":   now,
	}
	if c.DisplayName != "" {
		set["displayName"] = c.DisplayName
	}
	if c.GroupInfo != nil {
		set["groupInfo"] = c.GroupInfo
	}
	return bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"conversationId": c.ConversationID,
			"createdAt":      now,
			"rollup":         Rollup{},
		},
	}
}

// UpsertConversation writes conversation metadata by conversationId.
// The rollup sub-document is owned by IncrementRollup and is only seeded
// on insert.
func (s *Mongo) UpsertConversation(ctx context.Context, c Conversation) error {
	_, err := s.conversations().UpdateOne(ctx,
		bson.M{"conversationId": c.ConversationID},
		conversationUpdate(c, time.Now().UTC()),
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return s.unavailable("upsert conversation", err)
	}
	return nil
}

// IncrementRollup atomically bumps totalMessages, refreshes lastMessageAt,
// and sets firstMessageAt only if currently unset (first-write-wins). The
// whole update runs server-side as one pipeline, so concurrent writers
// cannot lose increments.
func (s *Mongo) IncrementRollup(ctx context.Context, conversationID string, sentAt time.Time) error {
	_, err := s.conversations().UpdateOne(ctx,
		bson.M{"conversationId": conversationID},
		rollupUpdate(sentAt, time.Now().UTC()),
	)
	if err != nil {
		return s.unavailable("increment rollup", err)
	}
	return nil
}

// rollupUpdate builds the aggregation-pipeline update for IncrementRollup.
func rollupUpdate(sentAt, now time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"rollup.totalMessages": bson.M{
				"$add": bson.A{bson.M{"$ifNull": bson.A{"$rollup.totalMessages", 0}}, 1},
			},
			"rollup.firstMessageAt": bson.M{
				"$ifNull": bson.A{"$rollup.firstMessageAt", sentAt},
			},
			"rollup.lastMessageAt": sentAt,
			"updatedAt":            now,
		}}},
	}
}

// RecordsInConversation returns the most recent limit messages by sentAt
// descending.
func (s *Mongo) RecordsInConversation(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	cur, err := s.messages().Find(ctx,
		bson.M{"conversationId": conversationID},
		options.Find().
			SetSort(bson.D{{Key: "sentAt", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, s.unavailable("records in conversation", err)
	}
	return decodeMessages(ctx, cur)
}

// AttachGeneratedReply back-annotates the inbound message that triggered a
// reply. The update touches only the generatedReply field, so it cannot
// clobber content persisted by UpsertMessage.
func (s *Mongo) AttachGeneratedReply(ctx context.Context, messageID string, reply GeneratedReply) error {
	res, err := s.messages().UpdateOne(ctx,
		bson.M{"messageId": messageID},
		bson.M{"$set": bson.M{"generatedReply": reply, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return s.unavailable("attach generated reply", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	return nil
}

// MessageByID fetches a single message.
func (s *Mongo) MessageByID(ctx context.Context, messageID string) (Message, error) {
	var m Message
	err := s.messages().FindOne(ctx, bson.M{"messageId": messageID}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Message{}, fmt.Errorf("%w: message %s", ErrNotFound, messageID)
		}
		return Message{}, s.unavailable("message by id", err)
	}
	return m, nil
}

// GetConversation fetches one conversation record.
func (s *Mongo) GetConversation(ctx context.Context, conversationID string) (Conversation, error) {
	var c Conversation
	err := s.conversations().FindOne(ctx, bson.M{"conversationId": conversationID}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Conversation{}, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
		}
		return Conversation{}, s.unavailable("get conversation", err)
	}
	return c, nil
}

// ListConversations returns conversations ordered by most recent activity.
func (s *Mongo) ListConversations(ctx context.Context, limit, skip int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	cur, err := s.conversations().Find(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "rollup.lastMessageAt", Value: -1}}).
			SetLimit(int64(limit)).
			SetSkip(int64(skip)),
	)
	if err != nil {
		return nil, s.unavailable("list conversations", err)
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	var out []Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, s.unavailable("list conversations", err)
	}
	return out, nil
}

// SearchMessages performs a case-insensitive body search with optional
// filters. The query string is matched literally, not as a user regex.
func (s *Mongo) SearchMessages(ctx context.Context, query string, opts SearchOptions) ([]Message, error) {
	filter := searchFilter(query, opts)
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	cur, err := s.messages().Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "sentAt", Value: -1}}).
			SetLimit(int64(limit)).
			SetSkip(int64(opts.Skip)),
	)
	if err != nil {
		return nil, s.unavailable("search messages", err)
	}
	return decodeMessages(ctx, cur)
}

// searchFilter builds the Find filter for SearchMessages.
func searchFilter(query string, opts SearchOptions) bson.M {
	filter := bson.M{
		"body": bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"},
	}
	if opts.ConversationID != "" {
		filter["conversationId"] = opts.ConversationID
	}
	if opts.Outbound != nil {
		filter["outbound"] = *opts.Outbound
	}
	if opts.From != nil || opts.To != nil {
		rng := bson.M{}
		if opts.From != nil {
			rng["$gte"] = *opts.From
		}
		if opts.To != nil {
			rng["$lte"] = *opts.To
		}
		filter["sentAt"] = rng
	}
	return filter
}

// ConversationStats aggregates direction and reply counts for one
// conversation.
func (s *Mongo) ConversationStats(ctx context.Context, conversationID string) (ConversationStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"conversationId": conversationID}}},
		{{Key: "$group", Value: bson.M{
			"_id":           nil,
			"totalMessages": bson.M{"$sum": 1},
			"inbound":       bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$outbound", false}}, 1, 0}}},
			"outbound":      bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$outbound", true}}, 1, 0}}},
			"autoReplies":   bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$gt": bson.A{"$generatedReply", nil}}, 1, 0}}},
			"firstMessage":  bson.M{"$min": "$sentAt"},
			"lastMessage":   bson.M{"$max": "$sentAt"},
		}}},
	}
	cur, err := s.messages().Aggregate(ctx, pipeline)
	if err != nil {
		return ConversationStats{}, s.unavailable("conversation stats", err)
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	var rows []struct {
		TotalMessages int64      `bson:"totalMessages"`
		Inbound       int64      `bson:"inbound"`
		Outbound      int64      `bson:"outbound"`
		AutoReplies   int64      `bson:"autoReplies"`
		FirstMessage  *time.Time `bson:"firstMessage"`
		LastMessage   *time.Time `bson:"lastMessage"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return ConversationStats{}, s.unavailable("conversation stats", err)
	}
	if len(rows) == 0 {
		return ConversationStats{}, nil
	}
	r := rows[0]
	return ConversationStats{
		TotalMessages: r.TotalMessages,
		Inbound:       r.Inbound,
		Outbound:      r.Outbound,
		AutoReplies:   r.AutoReplies,
		FirstMessage:  r.FirstMessage,
		LastMessage:   r.LastMessage,
	}, nil
}

// GlobalStats summarizes the store for status reporting.
func (s *Mongo) GlobalStats(ctx context.Context) (GlobalStats, error) {
	var stats GlobalStats
	var err error
	if stats.Conversations, err = s.conversations().CountDocuments(ctx, bson.M{}); err != nil {
		return GlobalStats{}, s.unavailable("global stats", err)
	}
	if stats.GroupConversations, err = s.conversations().CountDocuments(ctx, bson.M{"isGroup": true}); err != nil {
		return GlobalStats{}, s.unavailable("global stats", err)
	}
	if stats.Messages, err = s.messages().CountDocuments(ctx, bson.M{}); err != nil {
		return GlobalStats{}, s.unavailable("global stats", err)
	}
	if stats.AutoReplies, err = s.messages().CountDocuments(ctx, bson.M{"generatedReply": bson.M{"$ne": nil}}); err != nil {
		return GlobalStats{}, s.unavailable("global stats", err)
	}
	latest, err := s.messages().Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "sentAt", Value: -1}}).SetLimit(1),
	)
	if err != nil {
		return GlobalStats{}, s.unavailable("global stats", err)
	}
	defer func() {
		_ = latest.Close(ctx)
	}()
	var last []Message
	if err := latest.All(ctx, &last); err != nil {
		return GlobalStats{}, s.unavailable("global stats", err)
	}
	if len(last) > 0 {
		t := last[0].SentAt
		stats.LastMessageAt = &t
	}
	return stats, nil
}

// DeleteOldMessages removes messages older than the cutoff, keeping those
// that carry a generated reply annotation.
func (s *Mongo) DeleteOldMessages(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.messages().DeleteMany(ctx, bson.M{
		"sentAt":         bson.M{"$lt": cutoff},
		"generatedReply": nil,
	})
	if err != nil {
		return 0, s.unavailable("delete old messages", err)
	}
	return res.DeletedCount, nil
}

func decodeMessages(ctx context.Context, cur *mongo.Cursor) ([]Message, error) {
	defer func() {
		_ = cur.Close(ctx)
	}()
	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return out, nil
}

func (s *Mongo) unavailable(op string, err error) error {
	s.logger.Warn(op+" failed", slog.Any("error", err))
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
