// Package memstore implements queue.Engine entirely in memory, grounded on
// burrow.backend.memory.Backend from the original Python implementation: a
// nested index.Index of accounts, each holding an index.Index of queues,
// each holding an index.Index of messages, with one coarse mutex guarding
// the whole tree (spec.md's "coarse per-engine mutex" concurrency choice).
package memstore

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/emonty/burrow/internal/queue"
	"github.com/emonty/burrow/internal/queue/index"
)

type queueEntry struct {
	messages *index.Index[string, *queue.Message]
}

type accountEntry struct {
	queues *index.Index[string, *queueEntry]
}

// Engine is the in-memory queue.Engine implementation.
type Engine struct {
	mu       sync.Mutex
	accounts *index.Index[string, *accountEntry]
	now      func() int64

	// generation counts every structural mutation (account/queue
	// create/destroy). It exists only so tests can assert the auto-destroy
	// invariant without racing on a timing assumption, mirroring a debug
	// counter kept by the original memory backend's own test suite; it is
	// not part of the public Engine contract.
	generation uint64
}

// New returns an empty in-memory Engine.
func New() *Engine {
	return &Engine{
		accounts: index.New[string, *accountEntry](),
		now:      func() int64 { return time.Now().Unix() },
	}
}

// Generation returns the current structural-mutation counter. Test-only.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

func (e *Engine) Close() error { return nil }

func messageDetail(defaultDetail Detail) Detail { return defaultDetail }

// Detail is a local alias kept to make the per-operation default tables
// below read naturally; it is exactly queue.Detail.
type Detail = queue.Detail

func resolve(d Detail, def Detail) Detail {
	if d == queue.DetailDefault {
		return def
	}
	return d
}

func renderMessage(m *queue.Message, detail Detail, now int64) (queue.MessageView, bool) {
	switch detail {
	case queue.DetailNone:
		return queue.MessageView{}, false
	case queue.DetailID:
		return queue.MessageView{ID: m.ID}, true
	case queue.DetailBody:
		return queue.MessageView{ID: m.ID, Body: m.Body}, true
	case queue.DetailAttributes:
		return queue.MessageView{ID: m.ID, TTL: queue.Relativize(m.TTL, now), Hide: queue.Relativize(m.Hide, now)}, true
	case queue.DetailAll:
		return queue.MessageView{ID: m.ID, TTL: queue.Relativize(m.TTL, now), Hide: queue.Relativize(m.Hide, now), Body: m.Body}, true
	default:
		return queue.MessageView{}, false
	}
}

func renderAccountOrQueue(id string, detail Detail) (string, bool) {
	switch detail {
	case queue.DetailNone:
		return "", false
	case queue.DetailID, queue.DetailAll:
		return id, true
	default:
		return "", false
	}
}

// messagesView renders an already-matched slice of messages, used by the
// mutating bulk operations (delete/update) once the matched set and its
// size are already final, so detail rendering can never influence whether
// the caller sees NotFound or how many items counted against limit.
func messagesView(matched []*queue.Message, detail Detail, now int64) iter.Seq[queue.MessageView] {
	return func(yield func(queue.MessageView) bool) {
		for _, m := range matched {
			view, ok := renderMessage(m, detail, now)
			if !ok {
				continue
			}
			if !yield(view) {
				return
			}
		}
	}
}

// idsView renders an already-matched slice of account/queue ids, the
// account/queue counterpart to messagesView.
func idsView[V any](ids []string, detail Detail, build func(string) V) iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, id := range ids {
			rendered, ok := renderAccountOrQueue(id, detail)
			if !ok {
				continue
			}
			if !yield(build(rendered)) {
				return
			}
		}
	}
}

func (e *Engine) getAccount(account string) (*accountEntry, bool) {
	return e.accounts.Get(account)
}

func (e *Engine) getQueue(account, q string) (*queueEntry, bool) {
	acc, ok := e.getAccount(account)
	if !ok {
		return nil, false
	}
	return acc.queues.Get(q)
}

func (e *Engine) checkEmptyQueue(account string, acc *accountEntry, qname string, qe *queueEntry) {
	if qe.messages.Len() == 0 {
		acc.queues.Delete(qname)
		e.generation++
	}
	e.checkEmptyAccount(account, acc)
}

func (e *Engine) checkEmptyAccount(account string, acc *accountEntry) {
	if acc.queues.Len() == 0 {
		e.accounts.Delete(account)
		e.generation++
	}
}

// CreateMessage implements queue.Engine.
func (e *Engine) CreateMessage(ctx context.Context, account, q, id string, body []byte, attrs queue.Attributes) (created, notify bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	ttl := queue.Absolutize(attrs.TTL, now)
	hide := queue.Absolutize(attrs.Hide, now)

	acc, ok := e.accounts.Get(account)
	if !ok {
		acc = &accountEntry{queues: index.New[string, *queueEntry]()}
		e.accounts.Add(account, acc)
		e.generation++
	}
	qe, ok := acc.queues.Get(q)
	if !ok {
		qe = &queueEntry{messages: index.New[string, *queue.Message]()}
		acc.queues.Add(q, qe)
		e.generation++
	}

	msg := &queue.Message{ID: id, TTL: ttl, Hide: hide, Body: body}
	created = qe.messages.Add(id, msg)
	notify = hide == 0
	return created, notify, nil
}

// GetMessage implements queue.Engine.
func (e *Engine) GetMessage(ctx context.Context, account, q, id string, detail Detail) (queue.MessageView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	qe, ok := e.getQueue(account, q)
	if !ok {
		return queue.MessageView{}, queue.NewNotFound("queue not found")
	}
	msg, ok := qe.messages.Get(id)
	if !ok {
		return queue.MessageView{}, queue.NewNotFound("message not found")
	}
	view, _ := renderMessage(msg, resolve(detail, queue.DetailAll), e.now())
	return view, nil
}

// DeleteMessage implements queue.Engine.
func (e *Engine) DeleteMessage(ctx context.Context, account, q, id string, detail Detail) (queue.MessageView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acc, ok := e.getAccount(account)
	if !ok {
		return queue.MessageView{}, queue.NewNotFound("queue not found")
	}
	qe, ok := acc.queues.Get(q)
	if !ok {
		return queue.MessageView{}, queue.NewNotFound("queue not found")
	}
	msg, ok := qe.messages.Get(id)
	if !ok {
		return queue.MessageView{}, queue.NewNotFound("message not found")
	}
	view, _ := renderMessage(msg, resolve(detail, queue.DetailNone), e.now())
	qe.messages.Delete(id)
	e.checkEmptyQueue(account, acc, q, qe)
	return view, nil
}

// UpdateMessage implements queue.Engine.
func (e *Engine) UpdateMessage(ctx context.Context, account, q, id string, attrs queue.Attributes, detail Detail) (queue.MessageView, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	qe, ok := e.getQueue(account, q)
	if !ok {
		return queue.MessageView{}, false, queue.NewNotFound("queue not found")
	}
	msg, ok := qe.messages.Get(id)
	if !ok {
		return queue.MessageView{}, false, queue.NewNotFound("message not found")
	}

	now := e.now()
	notify := false
	if attrs.TTL != nil {
		msg.TTL = queue.Absolutize(attrs.TTL, now)
	}
	if attrs.Hide != nil {
		msg.Hide = queue.Absolutize(attrs.Hide, now)
		notify = msg.Hide == 0
	}
	view, _ := renderMessage(msg, resolve(detail, queue.DetailNone), now)
	return view, notify, nil
}

// GetMessages implements queue.Engine. It stays fully lazy: nothing is
// materialized, the mutex stays held until the returned Seq is consumed or
// abandoned, and detail rendering happens after the fact (MapOptional) so a
// "detail=none" read can't turn a matched message into a false NotFound.
func (e *Engine) GetMessages(ctx context.Context, account, q string, filter queue.Filter) (iter.Seq[queue.MessageView], error) {
	e.mu.Lock()
	qe, ok := e.getQueue(account, q)
	if !ok {
		e.mu.Unlock()
		return nil, queue.NewNotFound("queue not found")
	}
	now := e.now()
	detail := resolve(filter.Detail, queue.DetailAll)
	src := func(yield func(*queue.Message) bool) {
		defer e.mu.Unlock()
		for entry := range qe.messages.SeqFrom(filter.Marker, filter.HasMarker) {
			if !filter.MatchHidden && !entry.Value.Visible(now) {
				continue
			}
			if !yield(entry.Value) {
				return
			}
		}
	}
	matched, err := queue.FirstOrNotFound(queue.Limit(src, filter.Limit, filter.HasLimit), "message not found")
	if err != nil {
		return nil, err
	}
	return queue.MapOptional(matched, func(m *queue.Message) (queue.MessageView, bool) {
		return renderMessage(m, detail, now)
	}), nil
}

// DeleteMessages implements queue.Engine. Unlike GetMessages it cannot
// stream deletions as it scans: Limit's early exit only decides to stop
// *after* pulling one more item from its source, so a delete performed
// inside that source's loop body would remove one message beyond what gets
// reported. Instead the matched set is first fully decided (bounded by
// marker/limit/match_hidden) and only then mutated, under the same lock
// hold, mirroring how the relational engine's SQL LIMIT bounds its SELECT
// before any DELETE runs.
func (e *Engine) DeleteMessages(ctx context.Context, account, q string, filter queue.Filter) (iter.Seq[queue.MessageView], error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acc, ok := e.getAccount(account)
	if !ok {
		return nil, queue.NewNotFound("queue not found")
	}
	qe, ok := acc.queues.Get(q)
	if !ok {
		return nil, queue.NewNotFound("queue not found")
	}

	now := e.now()
	var matched []*queue.Message
	for entry := range qe.messages.SeqFrom(filter.Marker, filter.HasMarker) {
		if filter.HasLimit && len(matched) >= filter.Limit {
			break
		}
		if !filter.MatchHidden && !entry.Value.Visible(now) {
			continue
		}
		matched = append(matched, entry.Value)
	}
	if len(matched) == 0 {
		return nil, queue.NewNotFound("message not found")
	}
	for _, msg := range matched {
		qe.messages.Delete(msg.ID)
	}
	e.checkEmptyQueue(account, acc, q, qe)

	detail := resolve(filter.Detail, queue.DetailNone)
	return messagesView(matched, detail, now), nil
}

// UpdateMessages implements queue.Engine; see DeleteMessages for why the
// matched set is collected before attributes are applied.
func (e *Engine) UpdateMessages(ctx context.Context, account, q string, attrs queue.Attributes, filter queue.Filter) (iter.Seq[queue.MessageView], bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	qe, ok := e.getQueue(account, q)
	if !ok {
		return nil, false, queue.NewNotFound("queue not found")
	}

	now := e.now()
	var matched []*queue.Message
	for entry := range qe.messages.SeqFrom(filter.Marker, filter.HasMarker) {
		if filter.HasLimit && len(matched) >= filter.Limit {
			break
		}
		if !filter.MatchHidden && !entry.Value.Visible(now) {
			continue
		}
		matched = append(matched, entry.Value)
	}
	if len(matched) == 0 {
		return nil, false, queue.NewNotFound("message not found")
	}

	notify := false
	for _, msg := range matched {
		if attrs.TTL != nil {
			msg.TTL = queue.Absolutize(attrs.TTL, now)
		}
		if attrs.Hide != nil {
			msg.Hide = queue.Absolutize(attrs.Hide, now)
			if msg.Hide == 0 {
				notify = true
			}
		}
	}

	detail := resolve(filter.Detail, queue.DetailNone)
	return messagesView(matched, detail, now), notify, nil
}

// GetQueues implements queue.Engine, streaming lazily like GetMessages.
func (e *Engine) GetQueues(ctx context.Context, account string, filter queue.Filter) (iter.Seq[queue.QueueEntry], error) {
	e.mu.Lock()
	acc, ok := e.getAccount(account)
	if !ok {
		e.mu.Unlock()
		return nil, queue.NewNotFound("account not found")
	}
	detail := resolve(filter.Detail, queue.DetailID)
	src := func(yield func(string) bool) {
		defer e.mu.Unlock()
		for entry := range acc.queues.SeqFrom(filter.Marker, filter.HasMarker) {
			if !yield(entry.Key) {
				return
			}
		}
	}
	matched, err := queue.FirstOrNotFound(queue.Limit(src, filter.Limit, filter.HasLimit), "queue not found")
	if err != nil {
		return nil, err
	}
	return queue.MapOptional(matched, func(id string) (queue.QueueEntry, bool) {
		rendered, ok := renderAccountOrQueue(id, detail)
		return queue.QueueEntry{ID: rendered}, ok
	}), nil
}

// DeleteQueues implements queue.Engine; see DeleteMessages for why the
// matched set is collected before the index is mutated.
func (e *Engine) DeleteQueues(ctx context.Context, account string, filter queue.Filter) (iter.Seq[queue.QueueEntry], error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acc, ok := e.getAccount(account)
	if !ok {
		return nil, queue.NewNotFound("account not found")
	}

	var matched []string
	for entry := range acc.queues.SeqFrom(filter.Marker, filter.HasMarker) {
		if filter.HasLimit && len(matched) >= filter.Limit {
			break
		}
		matched = append(matched, entry.Key)
	}
	if len(matched) == 0 {
		return nil, queue.NewNotFound("queue not found")
	}
	for _, name := range matched {
		acc.queues.Delete(name)
		e.generation++
	}
	e.checkEmptyAccount(account, acc)

	detail := resolve(filter.Detail, queue.DetailNone)
	return idsView(matched, detail, func(id string) queue.QueueEntry { return queue.QueueEntry{ID: id} }), nil
}

// GetAccounts implements queue.Engine, streaming lazily like GetMessages.
func (e *Engine) GetAccounts(ctx context.Context, filter queue.Filter) (iter.Seq[queue.AccountEntry], error) {
	e.mu.Lock()
	detail := resolve(filter.Detail, queue.DetailID)
	src := func(yield func(string) bool) {
		defer e.mu.Unlock()
		for entry := range e.accounts.SeqFrom(filter.Marker, filter.HasMarker) {
			if !yield(entry.Key) {
				return
			}
		}
	}
	matched, err := queue.FirstOrNotFound(queue.Limit(src, filter.Limit, filter.HasLimit), "account not found")
	if err != nil {
		return nil, err
	}
	return queue.MapOptional(matched, func(id string) (queue.AccountEntry, bool) {
		rendered, ok := renderAccountOrQueue(id, detail)
		return queue.AccountEntry{ID: rendered}, ok
	}), nil
}

// DeleteAccounts implements queue.Engine; see DeleteMessages for why the
// matched set is collected before the index is mutated.
func (e *Engine) DeleteAccounts(ctx context.Context, filter queue.Filter) (iter.Seq[queue.AccountEntry], error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var matched []string
	for entry := range e.accounts.SeqFrom(filter.Marker, filter.HasMarker) {
		if filter.HasLimit && len(matched) >= filter.Limit {
			break
		}
		matched = append(matched, entry.Key)
	}
	if len(matched) == 0 {
		return nil, queue.NewNotFound("account not found")
	}
	for _, name := range matched {
		e.accounts.Delete(name)
		e.generation++
	}

	detail := resolve(filter.Detail, queue.DetailNone)
	return idsView(matched, detail, func(id string) queue.AccountEntry { return queue.AccountEntry{ID: id} }), nil
}

// Clean implements queue.Engine, sweeping every account/queue/message tree
// for expired ttl (remove) and expired hide (unhide), mirroring
// burrow.backend.memory.Backend.clean.
func (e *Engine) Clean(ctx context.Context) ([]queue.NotifyTarget, queue.CleanStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var notify []queue.NotifyTarget
	var stats queue.CleanStats

	for accEntry := range e.accounts.Seq() {
		acc := accEntry.Value
		for qEntry := range acc.queues.Seq() {
			qe := qEntry.Value
			unhidAny := false
			for mEntry := range qe.messages.Seq() {
				msg := mEntry.Value
				if msg.Expired(now) {
					qe.messages.Delete(mEntry.Key)
					stats.Expired++
					continue
				}
				if msg.Hide > 0 && msg.Hide <= now {
					msg.Hide = 0
					unhidAny = true
					stats.Unhidden++
				}
			}
			if unhidAny {
				notify = append(notify, queue.NotifyTarget{Account: accEntry.Key, Queue: qEntry.Key})
			}
			if qe.messages.Len() == 0 {
				acc.queues.Delete(qEntry.Key)
				e.generation++
			}
		}
		if acc.queues.Len() == 0 {
			e.accounts.Delete(accEntry.Key)
			e.generation++
		}
	}
	return notify, stats, nil
}
