// Package waiter implements the rendezvous registry the HTTP frontend uses
// to block a queue-level GET/DELETE/POST with a "wait" filter until a
// message becomes visible in the target account/queue, instead of polling
// the engine. It is grounded on the subscriber-map-plus-mutex shape of a
// generic Go pub/sub broker (one entry per topic, fan-out on publish)
// combined with the original Python implementation's wait/notify pair,
// which wakes every waiter parked on a queue rather than handing the
// message to exactly one of them — Burrow's wait is a liveliness hint
// ("something changed, go re-check"), not a delivery guarantee to a single
// waiter. An entry is removed only by Notify: a pair whose waiters all time
// out or are canceled stays registered until the next Notify for it.
package waiter

import (
	"context"
	"sync"
	"time"
)

type key struct {
	account string
	queue   string
}

// Registry tracks one broadcast channel per account/queue pair currently
// being waited on. Notify closes the channel, waking every parked Wait
// call; a fresh channel is installed lazily the next time something waits
// on that pair, matching the edge-triggered "notify wakes only current
// waiters" semantics of the original backend's notify().
type Registry struct {
	mu     sync.Mutex
	parked map[key]chan struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{parked: make(map[key]chan struct{})}
}

// Wait blocks until Notify is called for account/queue, ctx is done, or
// timeout fires (a nil timeout never fires, so only ctx or a Notify can
// unblock the call). It returns true if woken by Notify, false on timeout
// or context cancellation.
func (r *Registry) Wait(ctx context.Context, account, q string, timeout <-chan time.Time) bool {
	ch := r.subscribe(account, q)
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	case <-timeout:
		return false
	}
}

func (r *Registry) subscribe(account, q string) chan struct{} {
	k := key{account, q}
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.parked[k]
	if !ok {
		ch = make(chan struct{})
		r.parked[k] = ch
	}
	return ch
}

// Notify wakes every call currently parked in Wait for account/queue. A
// notify with no parked waiters is a cheap no-op: it never allocates a
// channel just to immediately signal it, mirroring the original backend's
// "only queues with pending waits are tracked" behavior.
func (r *Registry) Notify(account, q string) {
	r.mu.Lock()
	k := key{account, q}
	ch, ok := r.parked[k]
	if ok {
		delete(r.parked, k)
	}
	r.mu.Unlock()
	if ok {
		close(ch)
	}
}

// NotifyAll calls Notify for every target, as produced by a bulk
// create/update or by the reaper's Clean sweep.
func (r *Registry) NotifyAll(targets []NotifyTarget) {
	for _, t := range targets {
		r.Notify(t.Account, t.Queue)
	}
}

// NotifyTarget identifies an account/queue pair to wake. It mirrors
// queue.NotifyTarget structurally so callers can pass either through
// without an import cycle between internal/queue and internal/queue/waiter.
type NotifyTarget struct {
	Account string
	Queue   string
}

// Len reports the number of account/queue pairs that have a registered
// channel: every pair waited on since its last Notify, whether or not a
// Wait call is still parked on it.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.parked)
}
