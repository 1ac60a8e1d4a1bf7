package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage carries a chat message posted to a channel.
	EventMessage EventKind = iota
	// EventNotice carries a system message: command replies and channel notices.
	EventNotice
	// EventError carries a rejected command or message.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventNotice:
		return "notice"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Channel string
	Text    string
	Message *Message // non-nil for EventMessage
}

// Notice builds a system notice, optionally scoped to a channel.
func Notice(channel, text string) *Event {
	return &Event{Kind: EventNotice, Channel: channel, Text: text}
}

// Failure builds an error event.
func Failure(channel, text string) *Event {
	return &Event{Kind: EventError, Channel: channel, Text: text}
}
