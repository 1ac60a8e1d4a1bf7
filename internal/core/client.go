package core

import "github.com/vovakirdan/chanserv/internal/member"

const clientEventBuffer = 32

// Client is one connected session of a chat participant. A member may hold
// several sessions at once.
type Client struct {
	ID      member.ID
	Name    string
	IsGuest bool
	Events  chan *Event
}

// NewClient constructs a client with an initialized event queue.
func NewClient(id member.ID, name string, isGuest bool) *Client {
	if name == "" {
		name = id.String()
	}
	return &Client{
		ID:      id,
		Name:    name,
		IsGuest: isGuest,
		Events:  make(chan *Event, clientEventBuffer),
	}
}
