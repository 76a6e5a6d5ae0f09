// Package reaper runs the periodic sweep that expires messages past their
// ttl and unhides messages past their hide, grounded on the ticker-driven
// Start(ctx)/Stop(ctx) worker shape used elsewhere in this codebase for
// background tasks (stopCh/doneCh/sync.Once), adapted here to a single
// fixed-interval tick rather than a heartbeat-and-lease loop since there is
// no multi-instance coordination in scope. It mirrors
// burrow.backend.memory.Backend.clean / burrow.backend.sqlite.Backend.clean
// from the original implementation, which both run this sweep on a timer
// owned by the frontend process.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/emonty/burrow/internal/observability"
	"github.com/emonty/burrow/internal/queue"
	"github.com/emonty/burrow/internal/queue/waiter"
)

// Notifier is the subset of *waiter.Registry the reaper needs, kept as an
// interface so tests can substitute a recorder.
type Notifier interface {
	NotifyAll(targets []waiter.NotifyTarget)
}

// Reaper periodically calls Engine.Clean and wakes any waiters parked on a
// queue that gained a visible message as a result.
type Reaper struct {
	engine   queue.Engine
	notifier Notifier
	interval time.Duration
	log      *slog.Logger

	onSweep func(notified int, stats queue.CleanStats, err error) // test/metrics hook, optional

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Reaper that sweeps engine every interval, waking notifier
// for every queue Clean reports as changed.
func New(engine queue.Engine, notifier Notifier, interval time.Duration, log *slog.Logger) *Reaper {
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{
		engine:   engine,
		notifier: notifier,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// OnSweep installs a callback invoked after every sweep tick with the
// number of queues notified, the expired/unhidden message counts, and any
// error Clean returned, for metrics reporting. Only one callback is
// supported; a later call replaces the previous one.
func (r *Reaper) OnSweep(fn func(notified int, stats queue.CleanStats, err error)) {
	r.onSweep = fn
}

// Start runs the sweep loop in a background goroutine until ctx is
// canceled or Stop is called.
func (r *Reaper) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the sweep loop to exit and blocks until it has, or until ctx
// is done.
func (r *Reaper) Stop(ctx context.Context) {
	r.stopOnce.Do(func() { close(r.stopCh) })
	select {
	case <-r.doneCh:
	case <-ctx.Done():
	}
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	targets, stats, err := r.engine.Clean(ctx)
	if err != nil {
		r.log.Error("reaper sweep failed", "error", err)
		observability.CaptureWorkerException(ctx, "reaper", "sweep", err)
		if r.onSweep != nil {
			r.onSweep(0, stats, err)
		}
		return
	}
	if len(targets) > 0 {
		waiterTargets := make([]waiter.NotifyTarget, len(targets))
		for i, t := range targets {
			waiterTargets[i] = waiter.NotifyTarget{Account: t.Account, Queue: t.Queue}
		}
		r.notifier.NotifyAll(waiterTargets)
	}
	if r.onSweep != nil {
		r.onSweep(len(targets), stats, nil)
	}
}
