package reaper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/emonty/burrow/internal/queue"
	"github.com/emonty/burrow/internal/queue/waiter"
)

type fakeEngine struct {
	queue.Engine // embed nil; only Clean is exercised by the reaper

	mu      sync.Mutex
	targets []queue.NotifyTarget
	calls   int
}

func (f *fakeEngine) Clean(ctx context.Context) ([]queue.NotifyTarget, queue.CleanStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.targets, queue.CleanStats{}, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	woken   []waiter.NotifyTarget
	wokenCh chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{wokenCh: make(chan struct{}, 16)}
}

func (r *recordingNotifier) NotifyAll(targets []waiter.NotifyTarget) {
	r.mu.Lock()
	r.woken = append(r.woken, targets...)
	r.mu.Unlock()
	for range targets {
		r.wokenCh <- struct{}{}
	}
}

func TestReaperSweepsOnIntervalAndNotifies(t *testing.T) {
	engine := &fakeEngine{targets: []queue.NotifyTarget{{Account: "acc", Queue: "q1"}}}
	notifier := newRecordingNotifier()
	r := New(engine, notifier, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	select {
	case <-notifier.wokenCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the reaper's first sweep to notify")
	}

	r.Stop(context.Background())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.woken) == 0 || notifier.woken[0].Account != "acc" || notifier.woken[0].Queue != "q1" {
		t.Fatalf("got %+v", notifier.woken)
	}
}

func TestReaperStopIsIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	notifier := newRecordingNotifier()
	r := New(engine, notifier, time.Hour, nil)

	r.Start(context.Background())
	r.Stop(context.Background())
	r.Stop(context.Background())
}

func TestReaperStopsOnContextCancel(t *testing.T) {
	engine := &fakeEngine{}
	notifier := newRecordingNotifier()
	r := New(engine, notifier, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	select {
	case <-r.doneCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the reaper to exit after context cancel")
	}
}
