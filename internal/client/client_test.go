package client_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/emonty/burrow/internal/client"
	apihttp "github.com/emonty/burrow/internal/http"
	"github.com/emonty/burrow/internal/http/handlers"
	"github.com/emonty/burrow/internal/queue/memstore"
	"github.com/emonty/burrow/internal/queue/waiter"
)

func newTestServer(t *testing.T) (*client.Client, func()) {
	t.Helper()
	engine := memstore.New()
	waiters := waiter.New()

	router := apihttp.NewRouter(apihttp.RouterDeps{
		AccountHandler: handlers.NewAccountHandler(engine),
		QueueHandler:   handlers.NewQueueHandler(engine),
		MessageHandler: handlers.NewMessageHandler(engine, waiters, 60, 0),
	})

	srv := httptest.NewServer(router)
	c := client.New(srv.URL, nil)
	return c, srv.Close
}

func TestClientCreateThenGetMessage(t *testing.T) {
	c, closeSrv := newTestServer(t)
	defer closeSrv()
	ctx := context.Background()

	created, err := c.CreateMessage(ctx, "acc", "q1", "msg-1", []byte(`{"hello":"world"}`), client.Options{})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if !created {
		t.Fatal("expected CreateMessage to report a new creation")
	}

	msg, err := c.GetMessage(ctx, "acc", "q1", "msg-1", client.Options{})
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if msg.ID != "msg-1" {
		t.Fatalf("got message id %q, want msg-1", msg.ID)
	}
}

func TestClientCreateOverwriteReportsNotCreated(t *testing.T) {
	c, closeSrv := newTestServer(t)
	defer closeSrv()
	ctx := context.Background()

	if _, err := c.CreateMessage(ctx, "acc", "q1", "msg-1", []byte(`1`), client.Options{}); err != nil {
		t.Fatalf("first CreateMessage: %v", err)
	}
	created, err := c.CreateMessage(ctx, "acc", "q1", "msg-1", []byte(`2`), client.Options{})
	if err != nil {
		t.Fatalf("second CreateMessage: %v", err)
	}
	if created {
		t.Fatal("expected the second CreateMessage (overwrite) to report created=false")
	}
}

func TestClientGetMessageNotFound(t *testing.T) {
	c, closeSrv := newTestServer(t)
	defer closeSrv()

	_, err := c.GetMessage(context.Background(), "acc", "q1", "missing", client.Options{})
	if err == nil {
		t.Fatal("expected an error fetching a nonexistent message")
	}
	apiErr, ok := err.(*client.APIError)
	if !ok {
		t.Fatalf("got error of type %T, want *client.APIError", err)
	}
	if apiErr.Status != 404 {
		t.Fatalf("got status %d, want 404", apiErr.Status)
	}
}

func TestClientGetAccountsAndQueuesReflectCreatedMessage(t *testing.T) {
	c, closeSrv := newTestServer(t)
	defer closeSrv()
	ctx := context.Background()

	if _, err := c.CreateMessage(ctx, "acc", "q1", "msg-1", []byte(`1`), client.Options{}); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	accounts, err := c.GetAccounts(ctx, client.Options{})
	if err != nil {
		t.Fatalf("GetAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != "acc" {
		t.Fatalf("got accounts %+v, want a single entry named acc", accounts)
	}

	queues, err := c.GetQueues(ctx, "acc", client.Options{})
	if err != nil {
		t.Fatalf("GetQueues: %v", err)
	}
	if len(queues) != 1 || queues[0].ID != "q1" {
		t.Fatalf("got queues %+v, want a single entry named q1", queues)
	}
}

func TestClientDeleteMessage(t *testing.T) {
	c, closeSrv := newTestServer(t)
	defer closeSrv()
	ctx := context.Background()

	if _, err := c.CreateMessage(ctx, "acc", "q1", "msg-1", []byte(`1`), client.Options{}); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if _, err := c.DeleteMessage(ctx, "acc", "q1", "msg-1", client.Options{}); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if _, err := c.GetMessage(ctx, "acc", "q1", "msg-1", client.Options{}); err == nil {
		t.Fatal("expected the deleted message to be gone")
	}
}

func TestClientUpdateMessage(t *testing.T) {
	c, closeSrv := newTestServer(t)
	defer closeSrv()
	ctx := context.Background()

	if _, err := c.CreateMessage(ctx, "acc", "q1", "msg-1", []byte(`1`), client.Options{}); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	var ttl int64 = 3600
	if _, err := c.UpdateMessage(ctx, "acc", "q1", "msg-1", client.Options{TTL: &ttl}); err != nil {
		t.Fatalf("UpdateMessage: %v", err)
	}
}
