package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanserv/internal/member"
)

// Hub tracks online sessions and delivers events to them.
type Hub struct {
	log *zerolog.Logger

	mu       sync.RWMutex
	sessions map[member.ID]map[*Client]struct{}
}

// NewHub creates an empty hub. A nil logger discards output.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		log:      logger,
		sessions: make(map[member.ID]map[*Client]struct{}),
	}
}

// Register marks a session online.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.sessions[c.ID]
	if !ok {
		set = make(map[*Client]struct{})
		h.sessions[c.ID] = set
	}
	set[c] = struct{}{}
	h.log.Debug().Str("member", c.ID.String()).Str("name", c.Name).Int("sessions", len(set)).Msg("client registered")
}

// Unregister removes a session. The client's event queue is left open; the
// owner stops reading it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.sessions[c.ID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.sessions, c.ID)
	}
	h.log.Debug().Str("member", c.ID.String()).Msg("client unregistered")
}

// Online reports whether the member has at least one session.
func (h *Hub) Online(id member.ID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[id]) > 0
}

// OnlineCount returns the number of members with a session.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Send delivers ev to every session of the member. Offline members are
// skipped; a session whose queue is full drops the event.
func (h *Hub) Send(to member.ID, ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliverLocked(to, ev)
}

// Broadcast delivers ev to every listed member.
func (h *Hub) Broadcast(to []member.ID, ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range to {
		h.deliverLocked(id, ev)
	}
}

// BroadcastAll delivers ev to every online member.
func (h *Hub) BroadcastAll(ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range h.sessions {
		h.deliverLocked(id, ev)
	}
}

func (h *Hub) deliverLocked(to member.ID, ev *Event) {
	for client := range h.sessions[to] {
		select {
		case client.Events <- ev:
		default:
			// Drop if slow consumer.
			h.log.Warn().Str("member", to.String()).Str("event", ev.Kind.String()).Msg("client queue full, dropping event")
		}
	}
}
