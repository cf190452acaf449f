package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatsinkai/chatsink/internal/platform"
	"github.com/chatsinkai/chatsink/internal/store"
)

func liveInbound(id, body string) platform.Inbound {
	return platform.Inbound{
		Event: platform.Event{
			MessageID: id,
			ChatID:    "111@c.us",
			From:      "111@c.us",
			To:        "me@c.us",
			Body:      body,
			Kind:      "chat",
			SentAt:    time.Now().UTC(),
		},
		Chat: platform.Chat{ID: "111@c.us", Name: "Ana"},
	}
}

func newTestRealtime(gw *fakeGateway, mat *fakeMaterializer) (*Realtime, *fakeSender) {
	sender := &fakeSender{result: platform.SendResult{MessageID: "out-1"}}
	orch := NewOrchestrator(nil, gw, &fakeCompleter{reply: "ok"}, sender, NewPhraseMatcher(nil), 10, false)
	return NewRealtime(nil, gw, mat, orch), sender
}

func TestHandleInboundPersistsNewMessage(t *testing.T) {
	gw := newFakeGateway()
	mat := &fakeMaterializer{}
	rt, _ := newTestRealtime(gw, mat)

	rt.HandleInbound(context.Background(), liveInbound("m1", "hola"))

	msg, ok := gw.messages["m1"]
	if !ok {
		t.Fatal("message not persisted")
	}
	if msg.Kind != store.KindText {
		t.Fatalf("kind = %q", msg.Kind)
	}
	if msg.Attachment != nil {
		t.Fatal("text message grew an attachment")
	}
	if mat.calls != 0 {
		t.Fatal("materializer called for text message")
	}
	if _, ok := gw.conversations["111@c.us"]; !ok {
		t.Fatal("conversation not persisted")
	}
	if gw.rollups["111@c.us"] != 1 {
		t.Fatalf("rollup increments = %d", gw.rollups["111@c.us"])
	}
}

func TestHandleInboundKeepsKnownDisplayName(t *testing.T) {
	gw := newFakeGateway()
	rt, _ := newTestRealtime(gw, &fakeMaterializer{})

	rt.HandleInbound(context.Background(), liveInbound("m1", "hola"))
	if got := gw.conversations["111@c.us"].DisplayName; got != "Ana" {
		t.Fatalf("DisplayName = %q", got)
	}

	// A frame without chat context arrives with only the ID filled in.
	degraded := liveInbound("m2", "sigues ahi?")
	degraded.Chat = platform.Chat{ID: "111@c.us"}
	rt.HandleInbound(context.Background(), degraded)

	if got := gw.conversations["111@c.us"].DisplayName; got != "Ana" {
		t.Fatalf("DisplayName = %q, want Ana", got)
	}
}

func TestHandleInboundSkipsDuplicate(t *testing.T) {
	gw := newFakeGateway()
	mat := &fakeMaterializer{}
	rt, _ := newTestRealtime(gw, mat)

	in := liveInbound("m1", "hola")
	rt.HandleInbound(context.Background(), in)
	rt.HandleInbound(context.Background(), in)

	if gw.rollups["111@c.us"] != 1 {
		t.Fatalf("duplicate delivery bumped rollup to %d", gw.rollups["111@c.us"])
	}
}

func TestHandleInboundAttachmentFailureStillPersists(t *testing.T) {
	gw := newFakeGateway()
	mat := &fakeMaterializer{desc: store.Attachment{
		StoredName: "2025-06-01T12-30-00Z_m2.jpeg",
		Error:      "download: connection reset",
	}}
	rt, _ := newTestRealtime(gw, mat)

	in := liveInbound("m2", "")
	in.Event.Kind = "image"
	in.Event.HasAttachment = true
	in.Event.MimeType = "image/jpeg"
	rt.HandleInbound(context.Background(), in)

	msg, ok := gw.messages["m2"]
	if !ok {
		t.Fatal("message with failed attachment not persisted")
	}
	if msg.Attachment == nil {
		t.Fatal("attachment descriptor missing")
	}
	if msg.Attachment.Success {
		t.Fatal("failed materialization recorded as success")
	}
	if mat.calls != 1 {
		t.Fatalf("materializer calls = %d", mat.calls)
	}
	if gw.rollups["111@c.us"] != 1 {
		t.Fatal("failed attachment blocked the rollup")
	}
}

func TestHandleInboundDropsEventWhenDedupFails(t *testing.T) {
	gw := newFakeGateway()
	gw.existingErr = errors.New("store unreachable")
	mat := &fakeMaterializer{}
	rt, _ := newTestRealtime(gw, mat)

	rt.HandleInbound(context.Background(), liveInbound("m1", "hola"))

	if len(gw.messages) != 0 {
		t.Fatal("event processed despite failed dedup check")
	}
	if mat.calls != 0 {
		t.Fatal("materializer called despite failed dedup check")
	}
}

func TestHandleInboundPersistFailureAbortsDownstream(t *testing.T) {
	gw := newFakeGateway()
	gw.upsertErr = errors.New("write refused")
	sender := &fakeSender{result: platform.SendResult{MessageID: "out-1"}}
	orch := NewOrchestrator(nil, gw, &fakeCompleter{reply: "ok"}, sender, NewPhraseMatcher(nil), 10, true)
	rt := NewRealtime(nil, gw, &fakeMaterializer{}, orch)

	rt.HandleInbound(context.Background(), liveInbound("m1", "hola"))

	if gw.rollups["111@c.us"] != 0 {
		t.Fatal("rollup ran without a persisted message")
	}
	if len(sender.sent) != 0 {
		t.Fatal("reply ran without a persisted message")
	}
}
