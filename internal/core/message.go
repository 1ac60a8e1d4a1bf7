package core

import "time"

// Message is a chat line posted to a channel.
type Message struct {
	Channel   string
	FromID    string
	From      string
	Text      string
	CreatedAt time.Time
}
