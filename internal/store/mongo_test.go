package store

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestSearchFilterEscapesRegex(t *testing.T) {
	filter := searchFilter("what?? (urgent)", SearchOptions{})
	body, ok := filter["body"].(bson.M)
	if !ok {
		t.Fatalf("body filter = %#v", filter["body"])
	}
	re, _ := body["$regex"].(string)
	// Metacharacters in the query must be matched literally.
	if re == "what?? (urgent)" {
		t.Fatal("query used as raw regex")
	}
	if body["$options"] != "i" {
		t.Fatal("search must be case-insensitive")
	}
}

func TestSearchFilterOptionalFields(t *testing.T) {
	outbound := true
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	filter := searchFilter("hola", SearchOptions{
		ConversationID: "111@c.us",
		Outbound:       &outbound,
		From:           &from,
		To:             &to,
	})

	if filter["conversationId"] != "111@c.us" {
		t.Fatalf("conversationId = %v", filter["conversationId"])
	}
	if filter["outbound"] != true {
		t.Fatalf("outbound = %v", filter["outbound"])
	}
	rng, ok := filter["sentAt"].(bson.M)
	if !ok {
		t.Fatalf("sentAt = %#v", filter["sentAt"])
	}
	if rng["$gte"] != from || rng["$lte"] != to {
		t.Fatalf("range = %#v", rng)
	}
}

func TestSearchFilterBareQuery(t *testing.T) {
	filter := searchFilter("hola", SearchOptions{})
	if _, ok := filter["conversationId"]; ok {
		t.Fatal("empty conversation filter leaked into query")
	}
	if _, ok := filter["sentAt"]; ok {
		t.Fatal("empty time range leaked into query")
	}
}

func TestRollupUpdateShape(t *testing.T) {
	sentAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC)
	pipeline := rollupUpdate(sentAt, now)

	if len(pipeline) != 1 {
		t.Fatalf("pipeline stages = %d", len(pipeline))
	}
	stage := pipeline[0]
	if stage[0].Key != "$set" {
		t.Fatalf("stage = %q", stage[0].Key)
	}
	set, ok := stage[0].Value.(bson.M)
	if !ok {
		t.Fatalf("stage value = %#v", stage[0].Value)
	}

	// totalMessages must be computed server-side, not read-modify-write.
	total, ok := set["rollup.totalMessages"].(bson.M)
	if !ok {
		t.Fatalf("totalMessages = %#v", set["rollup.totalMessages"])
	}
	if _, ok := total["$add"]; !ok {
		t.Fatal("totalMessages is not an atomic increment")
	}

	// firstMessageAt only fills when absent.
	first, ok := set["rollup.firstMessageAt"].(bson.M)
	if !ok {
		t.Fatalf("firstMessageAt = %#v", set["rollup.firstMessageAt"])
	}
	args, ok := first["$ifNull"].(bson.A)
	if !ok || len(args) != 2 {
		t.Fatalf("firstMessageAt = %#v", first)
	}
	if args[0] != "$rollup.firstMessageAt" || args[1] != sentAt {
		t.Fatalf("ifNull args = %#v", args)
	}

	if set["rollup.lastMessageAt"] != sentAt {
		t.Fatalf("lastMessageAt = %v", set["rollup.lastMessageAt"])
	}
	if set["updatedAt"] != now {
		t.Fatalf("updatedAt = %v", set["updatedAt"])
	}
}

func TestConversationUpdatePreservesDisplayName(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// No name known: the field must stay out of $set so an existing
	// display name survives the upsert.
	update := conversationUpdate(Conversation{ConversationID: "111@c.us"}, now)
	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatalf("$set = %#v", update["$set"])
	}
	if _, present := set["displayName"]; present {
		t.Fatalf("empty displayName reached $set: %#v", set)
	}

	update = conversationUpdate(Conversation{ConversationID: "111@c.us", DisplayName: "Ana"}, now)
	set = update["$set"].(bson.M)
	if set["displayName"] != "Ana" {
		t.Fatalf("displayName = %v", set["displayName"])
	}

	insert, ok := update["$setOnInsert"].(bson.M)
	if !ok {
		t.Fatalf("$setOnInsert = %#v", update["$setOnInsert"])
	}
	if insert["conversationId"] != "111@c.us" {
		t.Fatalf("conversationId = %v", insert["conversationId"])
	}
}
