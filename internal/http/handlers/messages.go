package handlers

import (
	"context"
	"io"
	"iter"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emonty/burrow/internal/queue"
)

// Waiter is the subset of *waiter.Registry the message handler needs: block
// on an account/queue pair, and wake it once an update lands.
type Waiter interface {
	Wait(ctx context.Context, account, q string, timeout <-chan time.Time) bool
	Notify(account, q string)
}

// MessageHandler serves the /v1.0/{account}/{queue}[/{message}] endpoints.
// DefaultTTL/DefaultHide are substituted for an unsupplied ttl/hide only on
// create (PUT); update (POST) always leaves an unsupplied attribute alone,
// per the asymmetry documented on queue.Attributes.
type MessageHandler struct {
	engine      queue.Engine
	waiters     Waiter
	defaultTTL  atomic.Int64
	defaultHide atomic.Int64
}

func NewMessageHandler(engine queue.Engine, waiters Waiter, defaultTTL, defaultHide int64) *MessageHandler {
	h := &MessageHandler{engine: engine, waiters: waiters}
	h.defaultTTL.Store(defaultTTL)
	h.defaultHide.Store(defaultHide)
	return h
}

// SetDefaults updates the ttl/hide substituted into a create (PUT) that
// doesn't specify them. Safe to call concurrently with request handling;
// used by cmd/burrowd's config file watcher to hot-reload these two values
// without a restart.
func (h *MessageHandler) SetDefaults(ttl, hide int64) {
	h.defaultTTL.Store(ttl)
	h.defaultHide.Store(hide)
}

// Create handles PUT /v1.0/{account}/{queue}/{message}: the only create
// operation in the whole URL space (there is no bulk PUT anywhere else).
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	q := chi.URLParam(r, "queue")
	id := chi.URLParam(r, "message")
	if err := validateSegments(account, q, id); err != nil {
		writeError(w, err)
		return
	}

	attrs, err := parseAttributes(r)
	if err != nil {
		writeError(w, err)
		return
	}
	attrs = withDefaults(attrs, h.defaultTTL.Load(), h.defaultHide.Load())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	created, notify, err := h.engine.CreateMessage(r.Context(), account, q, id, body, attrs)
	if err != nil {
		writeError(w, err)
		return
	}
	if notify {
		h.waiters.Notify(account, q)
	}
	if created {
		respondEmpty(w, http.StatusCreated)
		return
	}
	respondEmpty(w, http.StatusNoContent)
}

// Get handles GET /v1.0/{account}/{queue}/{message}. Single-message reads
// never wait, even with a "wait" param present: the original backend's
// wait() decorator only wraps the three queue-level range methods.
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	q := chi.URLParam(r, "queue")
	id := chi.URLParam(r, "message")
	if err := validateSegments(account, q, id); err != nil {
		writeError(w, err)
		return
	}

	detail, err := parseDetailParam(r, queue.ParseMessageDetail)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.engine.GetMessage(r.Context(), account, q, id, detail)
	if err != nil {
		writeError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, resolveMessageDetail(detail, queue.DetailAll), view)
}

// Delete handles DELETE /v1.0/{account}/{queue}/{message}.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	q := chi.URLParam(r, "queue")
	id := chi.URLParam(r, "message")
	if err := validateSegments(account, q, id); err != nil {
		writeError(w, err)
		return
	}

	detail, err := parseDetailParam(r, queue.ParseMessageDetail)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.engine.DeleteMessage(r.Context(), account, q, id, detail)
	if err != nil {
		writeError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, resolveMessageDetail(detail, queue.DetailNone), view)
}

// Update handles POST /v1.0/{account}/{queue}/{message}.
func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	q := chi.URLParam(r, "queue")
	id := chi.URLParam(r, "message")
	if err := validateSegments(account, q, id); err != nil {
		writeError(w, err)
		return
	}

	attrs, err := parseAttributes(r)
	if err != nil {
		writeError(w, err)
		return
	}
	detail, err := parseDetailParam(r, queue.ParseMessageDetail)
	if err != nil {
		writeError(w, err)
		return
	}
	view, notify, err := h.engine.UpdateMessage(r.Context(), account, q, id, attrs, detail)
	if err != nil {
		writeError(w, err)
		return
	}
	if notify {
		h.waiters.Notify(account, q)
	}
	respondMessage(w, http.StatusOK, resolveMessageDetail(detail, queue.DetailNone), view)
}

// GetMany handles GET /v1.0/{account}/{queue}, including the blocking
// "wait" filter.
func (h *MessageHandler) GetMany(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	q := chi.URLParam(r, "queue")
	if err := validateSegments(account, q); err != nil {
		writeError(w, err)
		return
	}

	filter, err := parseFilter(r, queue.ParseMessageDetail)
	if err != nil {
		writeError(w, err)
		return
	}
	seq, err := waitForMessages(r.Context(), h.waiters, account, q, filter, func() (iter.Seq[queue.MessageView], error) {
		return h.engine.GetMessages(r.Context(), account, q, filter)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondMessageList(w, seq)
}

// DeleteMany handles DELETE /v1.0/{account}/{queue}.
func (h *MessageHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	q := chi.URLParam(r, "queue")
	if err := validateSegments(account, q); err != nil {
		writeError(w, err)
		return
	}

	filter, err := parseFilter(r, queue.ParseMessageDetail)
	if err != nil {
		writeError(w, err)
		return
	}
	seq, err := waitForMessages(r.Context(), h.waiters, account, q, filter, func() (iter.Seq[queue.MessageView], error) {
		return h.engine.DeleteMessages(r.Context(), account, q, filter)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondMessageList(w, seq)
}

// UpdateMany handles POST /v1.0/{account}/{queue}.
func (h *MessageHandler) UpdateMany(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	q := chi.URLParam(r, "queue")
	if err := validateSegments(account, q); err != nil {
		writeError(w, err)
		return
	}

	attrs, err := parseAttributes(r)
	if err != nil {
		writeError(w, err)
		return
	}
	filter, err := parseFilter(r, queue.ParseMessageDetail)
	if err != nil {
		writeError(w, err)
		return
	}

	var notify bool
	seq, err := waitForMessages(r.Context(), h.waiters, account, q, filter, func() (iter.Seq[queue.MessageView], error) {
		s, n, err := h.engine.UpdateMessages(r.Context(), account, q, attrs, filter)
		notify = n
		return s, err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if notify {
		h.waiters.Notify(account, q)
	}
	respondMessageList(w, seq)
}

// waitForMessages implements the wait-then-retry loop shared by the three
// queue-level message range operations: GetMessages/DeleteMessages/
// UpdateMessages. It applies only at this level — single-message ops and
// account/queue-level ops never wait, matching the original backend's
// wait()/wait_without_attributes()/wait_with_attributes() decorators, which
// wrap exactly these three methods and no others. Deadline = now+filter.Wait
// when positive; on NotFound it parks on the waiter registry for whatever
// of that deadline remains, then retries once woken or once the deadline
// passes, re-raising the original NotFound if it's still unmet.
func waitForMessages(ctx context.Context, waiters Waiter, account, q string, filter queue.Filter, call func() (iter.Seq[queue.MessageView], error)) (iter.Seq[queue.MessageView], error) {
	var deadline time.Time
	if filter.Wait > 0 {
		deadline = time.Now().Add(filter.Wait)
	}
	for {
		seq, err := call()
		if err == nil || queue.KindOf(err) != queue.NotFound {
			return seq, err
		}
		if filter.Wait <= 0 {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, err
		}
		timer := time.NewTimer(remaining)
		waiters.Wait(ctx, account, q, timer.C)
		timer.Stop()
		if time.Now().After(deadline) {
			seq, err2 := call()
			if err2 == nil || queue.KindOf(err2) != queue.NotFound {
				return seq, err2
			}
			return nil, err2
		}
	}
}

func parseDetailParam(r *http.Request, parse func(string) (queue.Detail, error)) (queue.Detail, error) {
	return parse(r.URL.Query().Get("detail"))
}

// resolveMessageDetail applies the operation's own default when the caller
// didn't specify one: get defaults to "all", delete/update default to
// "none", matching ParseMessageDetail's DetailDefault contract.
func resolveMessageDetail(detail, def queue.Detail) queue.Detail {
	if detail == queue.DetailDefault {
		return def
	}
	return detail
}

func writeError(w http.ResponseWriter, err error) {
	switch queue.KindOf(err) {
	case queue.NotFound:
		respondError(w, http.StatusNotFound, err.Error())
	case queue.InvalidArguments:
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondMessage renders a single message view per detail: "none" is a bare
// 204, "body" is the raw bytes as octet-stream, everything else is
// pretty-printed JSON.
func respondMessage(w http.ResponseWriter, status int, detail queue.Detail, view queue.MessageView) {
	switch detail {
	case queue.DetailNone:
		respondEmpty(w, http.StatusNoContent)
	case queue.DetailBody:
		respondRaw(w, status, view.Body)
	default:
		respondJSON(w, status, view)
	}
}

// respondMessageList materializes seq into a slice for JSON rendering. A
// result that renders to zero items (e.g. a matched-but-detail=none bulk
// delete/update) is reported as a bare 204, matching the original
// _response_body rule that an empty list body becomes None rather than
// "[]" — NotFound on the other hand is already handled upstream, before
// this function is ever reached, since it reflects "nothing matched" rather
// than "matched but nothing to render".
func respondMessageList(w http.ResponseWriter, seq iter.Seq[queue.MessageView]) {
	items := make([]queue.MessageView, 0)
	for v := range seq {
		items = append(items, v)
	}
	if len(items) == 0 {
		respondEmpty(w, http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, items)
}
