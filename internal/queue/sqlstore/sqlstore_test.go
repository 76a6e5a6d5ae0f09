package sqlstore

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/emonty/burrow/internal/queue"
)

func ptr(v int64) *int64 { return &v }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	e, err := Open(context.Background(), db)
	if err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	e.now = func() int64 { return 1000 }
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
	e := newTestEngine(t)
	ctx := context.Background()

	created, notify, err := e.CreateMessage(ctx, "acc", "q1", "m1", []byte("hello"), queue.Attributes{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || !notify {
		t.Fatalf("got created=%v notify=%v, want true,true", created, notify)
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
	e := newTestEngine(t)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "m1", []byte("v1"), queue.Attributes{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	created, _, err := e.CreateMessage(ctx, "acc", "q1", "m1", []byte("v2"), queue.Attributes{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatal("expected created=false on overwrite")
	}

	view, err := e.GetMessage(ctx, "acc", "q1", "m1", queue.DetailBody)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(view.Body) != "v2" {
		t.Fatalf("got %q, want v2", view.Body)
	}
}

func TestCreateMessageHiddenDoesNotNotify(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, notify, err := e.CreateMessage(ctx, "acc", "q1", "m1", nil, queue.Attributes{Hide: ptr(60)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notify {
		t.Fatal("expected notify=false for a message created hidden")
	}
}

func TestGetMessageNotFound(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.GetMessage(ctx, "acc", "q1", "m1", queue.DetailAll)
	if queue.KindOf(err) != queue.NotFound {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func TestDeleteMessageAutoDestroysQueueAndAccount(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "m1", nil, queue.Attributes{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.DeleteMessage(ctx, "acc", "q1", "m1", queue.DetailID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := e.GetMessage(ctx, "acc", "q1", "m1", queue.DetailAll); queue.KindOf(err) != queue.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := e.GetAccounts(ctx, queue.Filter{}); queue.KindOf(err) != queue.NotFound {
		t.Fatalf("expected account auto-destroyed, got %v", err)
	}
}

func TestGetMessagesMarkerResumesAfterID(t *testing.T) {
	e := newTestEngine(t)
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
	e := newTestEngine(t)
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

func TestGetMessagesSkipsHiddenUnlessMatchHidden(t *testing.T) {
	e := newTestEngine(t)
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
		t.Fatalf("got %+v, want both with match_hidden", got)
	}
}

func TestDeleteMessagesRemovesScannedRows(t *testing.T) {
	e := newTestEngine(t)
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
		t.Fatalf("expected the queue auto-destroyed once drained, got %v", err)
	}
}

func TestUpdateMessagesAppliesAttributesAndReportsNotify(t *testing.T) {
	e := newTestEngine(t)
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

func TestGetQueuesAndDeleteQueues(t *testing.T) {
	e := newTestEngine(t)
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
		t.Fatalf("got %+v, want both deleted", gotDel)
	}

	if _, err := e.GetAccounts(ctx, queue.Filter{}); queue.KindOf(err) != queue.NotFound {
		t.Fatalf("expected account auto-destroyed once every queue is gone, got %v", err)
	}
}

func TestGetAccountsAndDeleteAccounts(t *testing.T) {
	e := newTestEngine(t)
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
	e := newTestEngine(t)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "expired", []byte("gone"), queue.Attributes{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.db.ExecContext(ctx, `UPDATE messages SET ttl = 500 WHERE message = 'expired'`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "unhide-me", nil, queue.Attributes{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.db.ExecContext(ctx, `UPDATE messages SET hide = 500 WHERE message = 'unhide-me'`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notify, stats, err := e.Clean(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notify) != 1 || notify[0].Account != "acc" || notify[0].Queue != "q1" {
		t.Fatalf("got %+v", notify)
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
	e := newTestEngine(t)
	ctx := context.Background()

	if _, _, err := e.CreateMessage(ctx, "acc", "q1", "expired", nil, queue.Attributes{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.db.ExecContext(ctx, `UPDATE messages SET ttl = 500 WHERE message = 'expired'`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := e.Clean(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := e.GetAccounts(ctx, queue.Filter{}); queue.KindOf(err) != queue.NotFound {
		t.Fatalf("expected account auto-destroyed after clean emptied its only queue, got %v", err)
	}
}
