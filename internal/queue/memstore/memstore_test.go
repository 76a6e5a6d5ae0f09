package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/emonty/burrow/internal/queue"
)

func ptr(v int64) *int64 { return &v }

func newTestEngine(now int64) *Engine {
	e := New()
	e.now = func() int64 { return now }
	return e
}

func drain[T any](t *testing.T, seq func(func(T) bool), err error) []T {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out []T
	for v := range seq {
		out = append(out, v)
	}
	return out
}

func TestCreateMessageAutoCreatesAccountAndQueue(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	created, notify, err := e.CreateMessage(ctx, "acc", "q1", "m1", []byte("hello"), queue.Attributes{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("expected created=true for first insert")
	}
	if !notify {
		t.Fatal("expected notify=true for a visible message")
	}

	view, err := e.GetMessage(ctx, "acc", "q1", "m1", queue.DetailAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.ID != "m1" || string(view.Body) != "hello" {
		t.Fatalf("got %+v", view)
	}
}

func TestCreateMessageOverwriteReportsCreatedFalse(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "m1", []byte("v1"), queue.Attributes{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	created, notify, err := e.CreateMessage(ctx, "acc", "q1", "m1", []byte("v2"), queue.Attributes{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatal("expected created=false on overwrite")
	}
	if !notify {
		t.Fatal("expected notify=true when overwrite is visible")
	}

	view, err := e.GetMessage(ctx, "acc", "q1", "m1", queue.DetailBody)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(view.Body) != "v2" {
		t.Fatalf("got body %q, want v2", view.Body)
	}
}

func TestCreateMessageHiddenDoesNotNotify(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	_, notify, err := e.CreateMessage(ctx, "acc", "q1", "m1", nil, queue.Attributes{Hide: ptr(60)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notify {
		t.Fatal("expected notify=false for a message created hidden")
	}
}

func TestDeleteMessageAutoDestroysQueueAndAccount(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "m1", nil, queue.Attributes{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.DeleteMessage(ctx, "acc", "q1", "m1", queue.DetailID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := e.GetMessage(ctx, "acc", "q1", "m1", queue.DetailAll); queue.KindOf(err) != queue.NotFound {
		t.Fatalf("expected NotFound after destroying the only queue, got %v", err)
	}
	if _, err := e.GetAccounts(ctx, queue.Filter{}); queue.KindOf(err) != queue.NotFound {
		t.Fatalf("expected account list empty, got err %v", err)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	_, err := e.GetMessage(ctx, "acc", "q1", "m1", queue.DetailAll)
	var qerr *queue.Error
	if !errors.As(err, &qerr) || qerr.Kind != queue.NotFound {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func TestGetMessagesMarkerResumesAfterID(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	for _, id := range []string{"m1", "m2", "m3"} {
		if _, _, err := e.CreateMessage(ctx, "acc", "q1", id, nil, queue.Attributes{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	seq, err := e.GetMessages(ctx, "acc", "q1", queue.Filter{Marker: "m1", HasMarker: true, Detail: queue.DetailID})
	got := drain[queue.MessageView](t, seq, err)
	if len(got) != 2 || got[0].ID != "m2" || got[1].ID != "m3" {
		t.Fatalf("got %+v", got)
	}
}

func TestGetMessagesUnknownMarkerStartsFromHead(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	for _, id := range []string{"m1", "m2"} {
		if _, _, err := e.CreateMessage(ctx, "acc", "q1", id, nil, queue.Attributes{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	seq, err := e.GetMessages(ctx, "acc", "q1", queue.Filter{Marker: "missing", HasMarker: true, Detail: queue.DetailID})
	got := drain[queue.MessageView](t, seq, err)
	if len(got) != 2 || got[0].ID != "m1" {
		t.Fatalf("got %+v", got)
	}
}

func TestGetMessagesLimit(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	for _, id := range []string{"m1", "m2", "m3"} {
		if _, _, err := e.CreateMessage(ctx, "acc", "q1", id, nil, queue.Attributes{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	seq, err := e.GetMessages(ctx, "acc", "q1", queue.Filter{Limit: 2, HasLimit: true, Detail: queue.DetailID})
	got := drain[queue.MessageView](t, seq, err)
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("got %+v", got)
	}
}

func TestGetMessagesSkipsHiddenUnlessMatchHidden(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "visible", nil, queue.Attributes{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "hidden", nil, queue.Attributes{Hide: ptr(60)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seq, err := e.GetMessages(ctx, "acc", "q1", queue.Filter{Detail: queue.DetailID})
	got := drain[queue.MessageView](t, seq, err)
	if len(got) != 1 || got[0].ID != "visible" {
		t.Fatalf("got %+v, want only the visible message", got)
	}

	seq, err = e.GetMessages(ctx, "acc", "q1", queue.Filter{Detail: queue.DetailID, MatchHidden: true})
	got = drain[queue.MessageView](t, seq, err)
	if len(got) != 2 {
		t.Fatalf("got %+v, want both messages with match_hidden", got)
	}
}

func TestGetMessagesEmptyQueueReturnsNotFound(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "m1", nil, queue.Attributes{Hide: ptr(60)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := e.GetMessages(ctx, "acc", "q1", queue.Filter{Detail: queue.DetailID})
	if queue.KindOf(err) != queue.NotFound {
		t.Fatalf("got %v, want NotFound when every message is hidden", err)
	}
}

func TestDeleteMessagesRemovesScannedRows(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	for _, id := range []string{"m1", "m2", "m3"} {
		if _, _, err := e.CreateMessage(ctx, "acc", "q1", id, nil, queue.Attributes{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	seq, err := e.DeleteMessages(ctx, "acc", "q1", queue.Filter{Detail: queue.DetailID})
	got := drain[queue.MessageView](t, seq, err)
	if len(got) != 3 {
		t.Fatalf("got %+v, want all three deleted", got)
	}

	if _, err := e.GetMessages(ctx, "acc", "q1", queue.Filter{}); queue.KindOf(err) != queue.NotFound {
		t.Fatalf("expected the queue to be auto-destroyed once drained, got %v", err)
	}
}

func TestUpdateMessagesAppliesAttributesAndReportsNotify(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "m1", nil, queue.Attributes{Hide: ptr(60)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seq, notify, err := e.UpdateMessages(ctx, "acc", "q1", queue.Attributes{Hide: ptr(0)}, queue.Filter{Detail: queue.DetailID, MatchHidden: true})
	got := drain[queue.MessageView](t, seq, err)
	if len(got) != 1 {
		t.Fatalf("got %+v", got)
	}
	if !notify {
		t.Fatal("expected notify=true when hide is cleared to 0")
	}

	view, err := e.GetMessage(ctx, "acc", "q1", "m1", queue.DetailAttributes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Hide != 0 {
		t.Fatalf("got hide=%d, want 0", view.Hide)
	}
}

func TestUpdateMessageLeavesUnspecifiedAttributesUnchanged(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "m1", nil, queue.Attributes{TTL: ptr(300), Hide: ptr(60)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, notify, err := e.UpdateMessage(ctx, "acc", "q1", "m1", queue.Attributes{TTL: ptr(600)}, queue.DetailAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notify {
		t.Fatal("expected notify=false when hide is left untouched and still hidden")
	}

	view, err := e.GetMessage(ctx, "acc", "q1", "m1", queue.DetailAttributes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Hide != 60 {
		t.Fatalf("got hide=%d, want untouched 60", view.Hide)
	}
	if view.TTL != 600 {
		t.Fatalf("got ttl=%d, want 600", view.TTL)
	}
}

func TestGetQueuesAndDeleteQueues(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	for _, q := range []string{"q1", "q2"} {
		if _, _, err := e.CreateMessage(ctx, "acc", q, "m1", nil, queue.Attributes{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	seq, err := e.GetQueues(ctx, "acc", queue.Filter{})
	got := drain[queue.QueueEntry](t, seq, err)
	if len(got) != 2 || got[0].ID != "q1" || got[1].ID != "q2" {
		t.Fatalf("got %+v", got)
	}

	seq2, err := e.DeleteQueues(ctx, "acc", queue.Filter{Detail: queue.DetailID})
	gotDel := drain[queue.QueueEntry](t, seq2, err)
	if len(gotDel) != 2 {
		t.Fatalf("got %+v, want both queues deleted", gotDel)
	}

	if _, err := e.GetAccounts(ctx, queue.Filter{}); queue.KindOf(err) != queue.NotFound {
		t.Fatalf("expected account auto-destroyed once every queue is gone, got %v", err)
	}
}

func TestGetAccountsAndDeleteAccounts(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	for _, acc := range []string{"a1", "a2"} {
		if _, _, err := e.CreateMessage(ctx, acc, "q1", "m1", nil, queue.Attributes{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	seq, err := e.GetAccounts(ctx, queue.Filter{})
	got := drain[queue.AccountEntry](t, seq, err)
	if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a2" {
		t.Fatalf("got %+v", got)
	}

	seq2, err := e.DeleteAccounts(ctx, queue.Filter{Detail: queue.DetailID})
	gotDel := drain[queue.AccountEntry](t, seq2, err)
	if len(gotDel) != 2 {
		t.Fatalf("got %+v, want both accounts deleted", gotDel)
	}

	if _, err := e.GetAccounts(ctx, queue.Filter{}); queue.KindOf(err) != queue.NotFound {
		t.Fatalf("expected no accounts left, got %v", err)
	}
}

func TestCleanRemovesExpiredTTLAndUnhidesExpiredHide(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "expired", []byte("gone"), queue.Attributes{TTL: ptr(-1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.now = func() int64 { return 1000 }
	if err := forceTTL(e, "acc", "q1", "expired", 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "unhide-me", nil, queue.Attributes{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := forceHide(e, "acc", "q1", "unhide-me", 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notify, stats, err := e.Clean(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notify) != 1 || notify[0].Account != "acc" || notify[0].Queue != "q1" {
		t.Fatalf("got %+v, want a single notify for acc/q1", notify)
	}
	if stats.Expired != 1 || stats.Unhidden != 1 {
		t.Fatalf("got stats %+v, want 1 expired and 1 unhidden", stats)
	}

	if _, err := e.GetMessage(ctx, "acc", "q1", "expired", queue.DetailAll); queue.KindOf(err) != queue.NotFound {
		t.Fatalf("expected expired message removed, got %v", err)
	}
	view, err := e.GetMessage(ctx, "acc", "q1", "unhide-me", queue.DetailAttributes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Hide != 0 {
		t.Fatalf("got hide=%d, want unhidden (0)", view.Hide)
	}
}

func TestCleanAutoDestroysQueueAndAccountLeftEmpty(t *testing.T) {
	e := newTestEngine(1000)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "expired", nil, queue.Attributes{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := forceTTL(e, "acc", "q1", "expired", 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := e.Clean(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := e.GetAccounts(ctx, queue.Filter{}); queue.KindOf(err) != queue.NotFound {
		t.Fatalf("expected account auto-destroyed after clean emptied its only queue, got %v", err)
	}
}

// forceTTL/forceHide reach past the public Engine contract to set an
// already-created message's ttl/hide to an already-elapsed absolute
// timestamp, since CreateMessage's own Absolutize adds "now" to any positive
// ttl/hide and so cannot store a positive timestamp that has already passed.
func forceTTL(e *Engine, account, q, id string, ttl int64) error {
	qe, ok := e.getQueue(account, q)
	if !ok {
		return queue.NewNotFound("queue not found")
	}
	msg, ok := qe.messages.Get(id)
	if !ok {
		return queue.NewNotFound("message not found")
	}
	msg.TTL = ttl
	return nil
}

func forceHide(e *Engine, account, q, id string, hide int64) error {
	qe, ok := e.getQueue(account, q)
	if !ok {
		return queue.NewNotFound("queue not found")
	}
	msg, ok := qe.messages.Get(id)
	if !ok {
		return queue.NewNotFound("message not found")
	}
	msg.Hide = hide
	return nil
}
