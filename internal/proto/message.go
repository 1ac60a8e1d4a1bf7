package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin  = "join"
	InboundTypeLeave = "leave"
	InboundTypeMsg   = "msg"
	InboundTypeCmd   = "cmd"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventReady   = "ready"
	EventMessage = "message"
	EventNotice  = "notice"
)

// Error codes of protocol-level failures.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeUnknownType = "invalid_message"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeRejected    = "rejected"
)

// JoinData requests to join or leave a channel.
type JoinData struct {
	Channel string `json:"channel"`
}

// MsgData is a chat message from the client. An empty channel posts to the
// sender's default channel.
type MsgData struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

// CmdData is a raw command line such as "mute bob 5".
type CmdData struct {
	Line string `json:"line"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventReadyData greets a connection with its identity.
type EventReadyData struct {
	MemberID string `json:"member_id"`
	User     string `json:"user"`
	Guest    bool   `json:"guest"`
	Protocol int    `json:"protocol"`
}

// EventMessageData is a chat message posted to a channel.
type EventMessageData struct {
	Channel string `json:"channel"`
	UserID  string `json:"user_id"`
	User    string `json:"user"`
	Text    string `json:"text"`
	Line    string `json:"line"`
	TS      int64  `json:"ts"`
}

// EventNoticeData is a system message, scoped to a channel when one applies.
type EventNoticeData struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	Channel string `json:"channel,omitempty"`
}
