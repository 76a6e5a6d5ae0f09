package handlers

import (
	"iter"
	"net/http"

	"github.com/emonty/burrow/internal/queue"
)

// AccountHandler serves the /v1.0 account-collection endpoints. Accounts
// are never created directly: they spring into existence as a side effect
// of the first message created under them (queue.Engine.CreateMessage) and
// are destroyed once their last queue is removed.
type AccountHandler struct {
	engine queue.Engine
}

func NewAccountHandler(engine queue.Engine) *AccountHandler {
	return &AccountHandler{engine: engine}
}

// Versions handles GET /, the version-list endpoint: it always succeeds
// with the single supported API version, regardless of any query
// parameters.
func (h *AccountHandler) Versions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, []string{"v1.0"})
}

// GetMany handles GET /v1.0, the "list accounts" form, mounted on its own
// route separate from the version list at / (see router.go).
func (h *AccountHandler) GetMany(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r, queue.ParseAccountQueueDetail)
	if err != nil {
		writeError(w, err)
		return
	}
	seq, err := h.engine.GetAccounts(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	respondAccountList(w, seq)
}

// DeleteMany handles DELETE /v1.0/{account-collection}.
func (h *AccountHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r, queue.ParseAccountQueueDetail)
	if err != nil {
		writeError(w, err)
		return
	}
	seq, err := h.engine.DeleteAccounts(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	respondAccountList(w, seq)
}

// respondAccountList mirrors respondMessageList's empty-body-becomes-204
// rule for the account-entry rendering.
func respondAccountList(w http.ResponseWriter, seq iter.Seq[queue.AccountEntry]) {
	items := make([]queue.AccountEntry, 0)
	for v := range seq {
		items = append(items, v)
	}
	if len(items) == 0 {
		respondEmpty(w, http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, items)
}
