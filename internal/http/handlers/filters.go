package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/emonty/burrow/internal/queue"
)

// parseFilter builds a queue.Filter from the wire query-parameter vocabulary
// shared by every range operation, mirroring the original _parse_filters:
// only params actually present are set, everything else is left at its
// HasX-gated zero value so the engine can tell "not supplied" from "supplied
// as zero".
func parseFilter(r *http.Request, parseDetail func(string) (queue.Detail, error)) (queue.Filter, error) {
	q := r.URL.Query()
	var filter queue.Filter

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, queue.NewInvalidArguments("invalid limit %q", v)
		}
		filter.Limit = n
		filter.HasLimit = true
	}
	if v, ok := q["marker"]; ok && len(v) > 0 {
		filter.Marker = v[0]
		filter.HasMarker = true
	}
	if v := q.Get("match_hidden"); v != "" {
		filter.MatchHidden = v == "true"
	}
	detail, err := parseDetail(q.Get("detail"))
	if err != nil {
		return filter, err
	}
	filter.Detail = detail
	if v := q.Get("wait"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, queue.NewInvalidArguments("invalid wait %q", v)
		}
		filter.Wait = time.Duration(n) * time.Second
	}
	return filter, nil
}

// parseAttributes builds a queue.Attributes from the ttl/hide query params.
// A missing param leaves the corresponding pointer nil; callers decide what
// nil means (create substitutes a configured default, update leaves the
// stored value unchanged) since that asymmetry depends on which verb is
// being served, not on the params themselves.
func parseAttributes(r *http.Request) (queue.Attributes, error) {
	var attrs queue.Attributes
	q := r.URL.Query()
	if v := q.Get("ttl"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return attrs, queue.NewInvalidArguments("invalid ttl %q", v)
		}
		attrs.TTL = &n
	}
	if v := q.Get("hide"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return attrs, queue.NewInvalidArguments("invalid hide %q", v)
		}
		attrs.Hide = &n
	}
	return attrs, nil
}

// withDefaults fills in attrs' nil fields from the handler's configured
// defaults, used only for create_message: an update leaves a nil field
// alone instead (see parseAttributes' doc comment).
func withDefaults(attrs queue.Attributes, defaultTTL, defaultHide int64) queue.Attributes {
	if attrs.TTL == nil {
		attrs.TTL = &defaultTTL
	}
	if attrs.Hide == nil {
		attrs.Hide = &defaultHide
	}
	return attrs
}
