package events

import "time"

// Kind names an event as "<subject>.<change>", e.g. "sphere.state_changed"
// or "assistant_playback.ended". Handlers switch on it before asserting the
// concrete type.
type Kind string

// Event is anything the orchestrator emits to handlers and run callbacks.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base is embedded by every event and stamps it when it is created on the
// conversation's event loop.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
