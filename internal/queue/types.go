// Package queue defines the account/queue/message domain model shared by
// every storage engine and by the HTTP frontend: the Message type, the
// Detail enum, the Filter/Attributes bundles and the Engine contract.
package queue

import (
	"encoding/json"
	"time"
)

// Detail controls how much of an entity a read or delete operation returns.
// It is parsed once at the HTTP edge (internal/http/handlers) from the wire
// "detail" query parameter and threaded through as this enum, never as a
// raw string, so that an invalid value is rejected before it reaches an
// engine.
type Detail int

const (
	// DetailDefault means "use the operation's own default", which differs
	// between accounts/queues (id) and messages (all); see
	// ParseAccountQueueDetail and ParseMessageDetail.
	DetailDefault Detail = iota
	DetailNone
	DetailID
	DetailAttributes
	DetailBody
	DetailAll
)

// ParseAccountQueueDetail validates a wire detail string against the set
// accepted for account and queue operations ("none", "id", "all"), mirroring
// burrow.backend.Backend._get_detail in the original implementation.
func ParseAccountQueueDetail(s string) (Detail, error) {
	switch s {
	case "":
		return DetailDefault, nil
	case "none":
		return DetailNone, nil
	case "id":
		return DetailID, nil
	case "all":
		return DetailAll, nil
	default:
		return DetailDefault, NewInvalidArguments("invalid detail %q", s)
	}
}

// ParseMessageDetail validates a wire detail string against the larger set
// accepted for message operations ("none", "id", "attributes", "body",
// "all"), mirroring burrow.backend.Backend._get_message_detail.
func ParseMessageDetail(s string) (Detail, error) {
	switch s {
	case "":
		return DetailDefault, nil
	case "none":
		return DetailNone, nil
	case "id":
		return DetailID, nil
	case "attributes":
		return DetailAttributes, nil
	case "body":
		return DetailBody, nil
	case "all":
		return DetailAll, nil
	default:
		return DetailDefault, NewInvalidArguments("invalid detail %q", s)
	}
}

// Filter bundles the query parameters accepted by read/delete/update
// operations at every level of the hierarchy. Not every field applies to
// every operation (MatchHidden and Wait only make sense for messages); the
// HTTP handlers only populate the fields relevant to the call they make.
type Filter struct {
	Marker      string
	HasMarker   bool
	Limit       int
	HasLimit    bool
	MatchHidden bool
	Detail      Detail
	Wait        time.Duration
}

// Attributes carries the optional ttl/hide values accepted by create and
// update operations, wire-relative (seconds from now) on input. A nil
// pointer means "not supplied": create treats that as "use the configured
// default", update treats it as "leave the current value unchanged" — the
// asymmetry is resolved by the HTTP handlers, not here, since it depends on
// which verb is being served (see internal/http/handlers/messages.go).
type Attributes struct {
	TTL  *int64
	Hide *int64
}

// Message is the engine's internal representation of a message body plus
// its absolute (unix-seconds, 0 meaning unset) ttl/hide attributes. Wire
// relativization happens only at the rendering boundary, via Relativize.
type Message struct {
	ID   string
	TTL  int64
	Hide int64
	Body []byte
}

// Visible reports whether the message is presently visible, i.e. its hide
// attribute is unset or has already elapsed as of now.
func (m Message) Visible(now int64) bool {
	return m.Hide == 0 || m.Hide <= now
}

// Expired reports whether the message's ttl has elapsed as of now.
func (m Message) Expired(now int64) bool {
	return m.TTL > 0 && m.TTL <= now
}

// Absolutize converts a wire-relative attribute value into an absolute unix
// timestamp, matching burrow.backend.Backend._get_attributes: a positive
// value is offset by the current time, zero/negative values (and nil) pass
// through unchanged. now is injected so callers can use a single consistent
// clock reading across a batch of messages.
func Absolutize(value *int64, now int64) int64 {
	if value == nil {
		return 0
	}
	if *value > 0 {
		return *value + now
	}
	return *value
}

// Relativize converts an absolute unix-seconds attribute back to wire form:
// a positive value has the current time subtracted back out, zero passes
// through unchanged. This is the inverse of Absolutize's positive branch.
func Relativize(value int64, now int64) int64 {
	if value > 0 {
		return value - now
	}
	return value
}

// AccountEntry and QueueEntry are the rendered forms of an account/queue
// produced by DetailID/DetailAll; DetailNone operations yield no entry.
type AccountEntry struct {
	ID string `json:"id"`
}

type QueueEntry struct {
	ID string `json:"id"`
}

// MessageView is the rendered form of a message at DetailAttributes/
// DetailAll; ttl/hide are already wire-relative by the time this is built.
type MessageView struct {
	ID   string `json:"id"`
	TTL  int64  `json:"ttl"`
	Hide int64  `json:"hide"`
	Body []byte `json:"body,omitempty"`
}

// messageViewWire is MessageView's wire shape: the body a caller PUT is
// opaque bytes, but the original implementation (and spec.md's wire
// examples) render it as the literal text back out, not base64 — encoding/
// json's default []byte handling would otherwise base64-encode it.
type messageViewWire struct {
	ID   string `json:"id"`
	TTL  int64  `json:"ttl"`
	Hide int64  `json:"hide"`
	Body string `json:"body,omitempty"`
}

func (m MessageView) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageViewWire{ID: m.ID, TTL: m.TTL, Hide: m.Hide, Body: string(m.Body)})
}

func (m *MessageView) UnmarshalJSON(data []byte) error {
	var wire messageViewWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.ID = wire.ID
	m.TTL = wire.TTL
	m.Hide = wire.Hide
	if wire.Body != "" {
		m.Body = []byte(wire.Body)
	} else {
		m.Body = nil
	}
	return nil
}
