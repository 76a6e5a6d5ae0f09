package queue

import (
	"context"
	"iter"
)

// NotifyTarget identifies an account/queue pair that gained a visible
// message and should wake any parked waiters.
type NotifyTarget struct {
	Account string
	Queue   string
}

// CleanStats summarizes one Clean sweep for metrics reporting: how many
// messages were removed for an elapsed ttl, and how many were made visible
// again for an elapsed hide.
type CleanStats struct {
	Expired  int
	Unhidden int
}

// Engine is the storage contract implemented by both backends
// (internal/queue/memstore and internal/queue/sqlstore). Every bulk read,
// delete or update operation returns an iter.Seq. memstore's GetMessages,
// GetQueues and GetAccounts evaluate it lazily, inspecting only the first
// item eagerly, which is how a NotFound-on-empty-result is told apart from a
// non-empty result without buffering the rest. memstore's mutating bulk
// operations and every sqlstore bulk operation collect the matched items
// into a slice first and return an iter.Seq over that slice.
//
// Bulk operations return bool notify values where the update requires the
// HTTP frontend (or the reaper) to wake parked waiters; the engine itself
// never talks to the waiter registry, keeping the wait/notify concern at a
// single layer shared by both backends.
type Engine interface {
	// CreateMessage inserts or overwrites a message. created reports
	// whether this was a new insert (true) or an overwrite of an existing
	// message (false); notify reports whether the waiter registry should be
	// woken (true when the stored message is visible, i.e. its hide is 0,
	// whether it was created or overwritten).
	CreateMessage(ctx context.Context, account, queue, id string, body []byte, attrs Attributes) (created, notify bool, err error)

	GetMessage(ctx context.Context, account, queue, id string, detail Detail) (MessageView, error)
	DeleteMessage(ctx context.Context, account, queue, id string, detail Detail) (MessageView, error)
	UpdateMessage(ctx context.Context, account, queue, id string, attrs Attributes, detail Detail) (view MessageView, notify bool, err error)

	GetMessages(ctx context.Context, account, queue string, filter Filter) (iter.Seq[MessageView], error)
	DeleteMessages(ctx context.Context, account, queue string, filter Filter) (iter.Seq[MessageView], error)
	UpdateMessages(ctx context.Context, account, queue string, attrs Attributes, filter Filter) (seq iter.Seq[MessageView], notify bool, err error)

	GetQueues(ctx context.Context, account string, filter Filter) (iter.Seq[QueueEntry], error)
	DeleteQueues(ctx context.Context, account string, filter Filter) (iter.Seq[QueueEntry], error)

	GetAccounts(ctx context.Context, filter Filter) (iter.Seq[AccountEntry], error)
	DeleteAccounts(ctx context.Context, filter Filter) (iter.Seq[AccountEntry], error)

	// Clean removes every message whose ttl has elapsed and unhides every
	// message whose hide has elapsed, auto-destroying any queue/account
	// left empty by the sweep. It returns the set of queues that gained a
	// visible message so the caller can notify parked waiters once per
	// queue, matching burrow.backend.memory.Backend.clean's batching.
	Clean(ctx context.Context) ([]NotifyTarget, CleanStats, error)

	Close() error
}
