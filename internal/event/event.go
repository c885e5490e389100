// Package event routes a decoded feed line to the kind of message it carries.
//
// A streaming feed interleaves statuses with control messages. Each message is a
// single object whose top-level keys identify it: {"delete":{...}}, {"limit":{...}},
// {"event":"favorite",...}, and so on. Classification and the accessors below only
// use Get/TryGet, so missing or mistyped fields come back as zero values.
package event

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jacoelho/feedjson/internal/value"
)

var ErrUnknownKind = errors.New("unknown event kind")

type Kind int

const (
	KindUnknown Kind = iota
	KindStatus
	KindDelete
	KindScrubGeo
	KindLimit
	KindStatusWithheld
	KindUserWithheld
	KindDisconnect
	KindWarning
	KindFriends
	KindEvent
	KindDirectMessage
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindStatus:         "status",
	KindDelete:         "delete",
	KindScrubGeo:       "scrub_geo",
	KindLimit:          "limit",
	KindStatusWithheld: "status_withheld",
	KindUserWithheld:   "user_withheld",
	KindDisconnect:     "disconnect",
	KindWarning:        "warning",
	KindFriends:        "friends",
	KindEvent:          "event",
	KindDirectMessage:  "direct_message",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, len(kindNames))
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

// ParseKind resolves a kind by its name.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// wrappers are control messages whose payload sits under a key named after them.
var wrappers = []struct {
	key  string
	kind Kind
}{
	{"delete", KindDelete},
	{"scrub_geo", KindScrubGeo},
	{"limit", KindLimit},
	{"status_withheld", KindStatusWithheld},
	{"user_withheld", KindUserWithheld},
	{"disconnect", KindDisconnect},
	{"warning", KindWarning},
	{"direct_message", KindDirectMessage},
}

// Event is a classified line.
type Event struct {
	Kind Kind
	// Name is the account event name, such as "favorite" or "follow", for KindEvent.
	Name string
	// Payload is the object the accessors read from: the wrapped object of control
	// messages, the whole line otherwise.
	Payload *value.Value
	// Line is the decoded line.
	Line *value.Value
}

// Classify inspects the top-level keys of line.
func Classify(line *value.Value) Event {
	if line.Kind() != value.KindObject {
		return Event{Kind: KindUnknown, Payload: line, Line: line}
	}

	for _, w := range wrappers {
		if payload, ok := line.TryGet(w.key); ok && payload.Kind() == value.KindObject {
			return Event{Kind: w.kind, Payload: payload, Line: line}
		}
	}

	if line.ContainsKey("friends") || line.ContainsKey("friends_str") {
		return Event{Kind: KindFriends, Payload: line, Line: line}
	}

	if name, ok := line.Get("event").StringOK(); ok {
		return Event{Kind: KindEvent, Name: name, Payload: line, Line: line}
	}

	if line.ContainsKey("user") && (line.ContainsKey("text") || line.ContainsKey("full_text") || line.ContainsKey("id_str")) {
		return Event{Kind: KindStatus, Payload: line, Line: line}
	}

	return Event{Kind: KindUnknown, Payload: line, Line: line}
}

// idString reads the string form of an id, preferring the "<field>_str" twin over
// the numeric field, which loses precision in some producers.
func idString(v *value.Value, field string) string {
	if s, ok := v.Get(field + "_str").StringOK(); ok {
		return s
	}
	id := v.Get(field)
	if n, ok := id.Int64OK(); ok && id.IsInteger() {
		return strconv.FormatInt(n, 10)
	}
	if s, ok := id.StringOK(); ok {
		return s
	}
	return ""
}

// ID returns the id of the status or message the event is about.
func (e Event) ID() string {
	switch e.Kind {
	case KindStatus, KindDirectMessage, KindStatusWithheld:
		return idString(e.Payload, "id")
	case KindDelete:
		if status, ok := e.Payload.TryGet("status"); ok {
			return idString(status, "id")
		}
		return idString(e.Payload.Get("direct_message"), "id")
	case KindScrubGeo:
		return idString(e.Payload, "up_to_status_id")
	case KindEvent:
		return idString(e.Payload.Get("target_object"), "id")
	}
	return ""
}

// UserID returns the id of the account that produced or is subject to the event.
func (e Event) UserID() string {
	switch e.Kind {
	case KindStatus:
		return idString(e.Payload.Get("user"), "id")
	case KindDirectMessage:
		return idString(e.Payload, "sender_id")
	case KindDelete:
		if status, ok := e.Payload.TryGet("status"); ok {
			return idString(status, "user_id")
		}
		return idString(e.Payload.Get("direct_message"), "user_id")
	case KindScrubGeo, KindStatusWithheld:
		return idString(e.Payload, "user_id")
	case KindUserWithheld:
		return idString(e.Payload, "id")
	case KindEvent:
		return idString(e.Payload.Get("source"), "id")
	}
	return ""
}

// Text returns the text of a status or direct message.
func (e Event) Text() string {
	if e.Kind != KindStatus && e.Kind != KindDirectMessage {
		return ""
	}
	if text, ok := e.Payload.Get("full_text").StringOK(); ok {
		return text
	}
	return e.Payload.Get("text").AsString()
}

// Track returns the number of undelivered statuses reported by a limit notice.
func (e Event) Track() int64 {
	if e.Kind != KindLimit {
		return 0
	}
	return e.Payload.Get("track").AsInt64()
}

// Code returns the code of a disconnect or warning message. Disconnect codes are
// numeric and warning codes are names; both come back as text.
func (e Event) Code() string {
	if e.Kind != KindDisconnect && e.Kind != KindWarning {
		return ""
	}
	code := e.Payload.Get("code")
	if code.IsInteger() {
		return strconv.FormatInt(code.AsInt64(), 10)
	}
	return code.AsString()
}

// Reason returns the human readable explanation of a disconnect or warning.
func (e Event) Reason() string {
	switch e.Kind {
	case KindDisconnect:
		return e.Payload.Get("reason").AsString()
	case KindWarning:
		return e.Payload.Get("message").AsString()
	}
	return ""
}

// Friends returns the ids of a friend list preamble.
func (e Event) Friends() []string {
	if e.Kind != KindFriends {
		return nil
	}

	if list, ok := e.Payload.TryGet("friends_str"); ok && list.Kind() == value.KindArray {
		ids := make([]string, 0, list.Len())
		for _, id := range list.Items() {
			ids = append(ids, id.AsString())
		}
		return ids
	}

	list := e.Payload.Get("friends")
	ids := make([]string, 0, list.Len())
	for _, id := range list.Items() {
		ids = append(ids, strconv.FormatInt(id.AsInt64(), 10))
	}
	return ids
}

// Countries returns the countries a withheld status or user is hidden in.
func (e Event) Countries() []string {
	if e.Kind != KindStatusWithheld && e.Kind != KindUserWithheld {
		return nil
	}
	list := e.Payload.Get("withheld_in_countries")
	countries := make([]string, 0, list.Len())
	for _, c := range list.Items() {
		countries = append(countries, c.AsString())
	}
	return countries
}
