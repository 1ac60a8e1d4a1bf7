package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanserv/internal/channel"
	"github.com/vovakirdan/chanserv/internal/member"
)

// ChannelHandlers provides read-only HTTP handlers for channel state.
type ChannelHandlers struct {
	registry *channel.Registry
	resolver *member.Resolver
	log      *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(registry *channel.Registry, resolver *member.Resolver, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		registry: registry,
		resolver: resolver,
		log:      logger,
	}
}

// ChannelResponse represents a channel in listings.
type ChannelResponse struct {
	Name      string `json:"name"`
	Members   int    `json:"members"`
	Member    bool   `json:"member"`
	Moderator bool   `json:"moderator"`
}

// MemberResponse is one identity with its display name.
type MemberResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MuteResponse is a muted member. ExpiresAt is empty for permanent mutes.
type MuteResponse struct {
	MemberResponse
	ExpiresAt string `json:"expires_at,omitempty"`
}

// ChannelDetailResponse is the full state of one channel.
type ChannelDetailResponse struct {
	Name       string           `json:"name"`
	Members    []MemberResponse `json:"members"`
	Moderators []MemberResponse `json:"moderators"`
	Muted      []MuteResponse   `json:"muted"`
	Banned     []MemberResponse `json:"banned"`
}

// ListChannels lists every channel, or only the caller's with ?mine=true.
// GET /api/channels
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	caller := member.ID(c.GetString(ContextKeyMemberID))

	channels := h.registry.List()
	if c.Query("mine") == "true" {
		channels = h.registry.ChannelsOf(caller)
	}

	response := make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		response = append(response, ChannelResponse{
			Name:      ch.Name(),
			Members:   ch.MemberCount(),
			Member:    ch.HasMember(caller),
			Moderator: ch.IsModerator(caller),
		})
	}

	h.log.Debug().Str("member", caller.String()).Int("channel_count", len(response)).Msg("channels listed")
	c.JSON(http.StatusOK, response)
}

// GetChannel returns members, moderators, mutes and bans of one channel.
// GET /api/channels/:name
func (h *ChannelHandlers) GetChannel(c *gin.Context) {
	name := c.Param("name")
	ch, ok := h.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
		return
	}

	state := ch.State()
	ctx := c.Request.Context()
	toResponse := func(ids []member.ID) []MemberResponse {
		out := make([]MemberResponse, 0, len(ids))
		for _, id := range ids {
			out = append(out, MemberResponse{ID: id.String(), Name: h.resolver.DisplayName(ctx, id)})
		}
		return out
	}

	muted := make([]MuteResponse, 0, len(state.Muted))
	for _, m := range state.Muted {
		entry := MuteResponse{MemberResponse: MemberResponse{ID: m.ID.String(), Name: h.resolver.DisplayName(ctx, m.ID)}}
		if m.Expires != nil {
			entry.ExpiresAt = m.Expires.UTC().Format(time.RFC3339)
		}
		muted = append(muted, entry)
	}

	c.JSON(http.StatusOK, ChannelDetailResponse{
		Name:       state.Name,
		Members:    toResponse(state.Members),
		Moderators: toResponse(state.Moderators),
		Muted:      muted,
		Banned:     toResponse(state.Banned),
	})
}
