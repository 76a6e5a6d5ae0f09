package handlers

import (
	"iter"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emonty/burrow/internal/queue"
)

// QueueHandler serves the /v1.0/{account}/{queue-collection} endpoints.
// Like accounts, queues are never created directly: they spring into
// existence as a side effect of the first message created under them and
// are destroyed once their last message is removed.
type QueueHandler struct {
	engine queue.Engine
}

func NewQueueHandler(engine queue.Engine) *QueueHandler {
	return &QueueHandler{engine: engine}
}

// GetMany handles GET /v1.0/{account}.
func (h *QueueHandler) GetMany(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if err := validateSegment(account); err != nil {
		writeError(w, err)
		return
	}

	filter, err := parseFilter(r, queue.ParseAccountQueueDetail)
	if err != nil {
		writeError(w, err)
		return
	}
	seq, err := h.engine.GetQueues(r.Context(), account, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	respondQueueList(w, seq)
}

// DeleteMany handles DELETE /v1.0/{account}.
func (h *QueueHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if err := validateSegment(account); err != nil {
		writeError(w, err)
		return
	}

	filter, err := parseFilter(r, queue.ParseAccountQueueDetail)
	if err != nil {
		writeError(w, err)
		return
	}
	seq, err := h.engine.DeleteQueues(r.Context(), account, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	respondQueueList(w, seq)
}

// respondQueueList mirrors respondMessageList's empty-body-becomes-204 rule
// for the queue-entry rendering.
func respondQueueList(w http.ResponseWriter, seq iter.Seq[queue.QueueEntry]) {
	items := make([]queue.QueueEntry, 0)
	for v := range seq {
		items = append(items, v)
	}
	if len(items) == 0 {
		respondEmpty(w, http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, items)
}
