package command

import (
	"context"
	"strconv"

	"github.com/vovakirdan/chanserv/internal/channel"
	"github.com/vovakirdan/chanserv/internal/core"
	"github.com/vovakirdan/chanserv/internal/member"
)

// ModerationSpec describes one moderation command for the shared executor:
// the arguments it takes, the state change, and the templates reporting it.
type ModerationSpec struct {
	Name  string
	Usage string
	// AllowDuration lets an all-digit second argument set a time limit.
	AllowDuration bool
	// Apply performs the change under the channel lock. It reports whether
	// the channel was deleted because it became empty.
	Apply func(r *channel.Registry, ch *channel.Channel, target member.ID, minutes int, timed bool) (bool, error)

	// Catalog keys. Timed variants are used when a duration was given and
	// the key is set.
	SenderKey, SenderTimedKey   string
	ChannelKey, ChannelTimedKey string
	TargetKey, TargetTimedKey   string
}

func (m ModerationSpec) keys(timed bool) (sender, broadcast, target string) {
	sender, broadcast, target = m.SenderKey, m.ChannelKey, m.TargetKey
	if !timed {
		return sender, broadcast, target
	}
	if m.SenderTimedKey != "" {
		sender = m.SenderTimedKey
	}
	if m.ChannelTimedKey != "" {
		broadcast = m.ChannelTimedKey
	}
	if m.TargetTimedKey != "" {
		target = m.TargetTimedKey
	}
	return sender, broadcast, target
}

var moderationSpecs = []ModerationSpec{
	{
		Name:          "mute",
		Usage:         "mute <player> [minutes] [channel]",
		AllowDuration: true,
		Apply: func(_ *channel.Registry, ch *channel.Channel, id member.ID, minutes int, timed bool) (bool, error) {
			if timed {
				return false, ch.MuteFor(id, minutes)
			}
			return false, ch.Mute(id)
		},
		SenderKey: "cmdmsg.mute", SenderTimedKey: "cmdmsg.mute_expire",
		ChannelKey: "channel.mute", ChannelTimedKey: "channel.mute_expire",
		TargetKey: "cmdmsg.muted", TargetTimedKey: "cmdmsg.muted_expire",
	},
	{
		Name:  "unmute",
		Usage: "unmute <player> [channel]",
		Apply: func(_ *channel.Registry, ch *channel.Channel, id member.ID, _ int, _ bool) (bool, error) {
			return false, ch.Unmute(id)
		},
		SenderKey: "cmdmsg.unmute", ChannelKey: "channel.unmute", TargetKey: "cmdmsg.unmuted",
	},
	{
		Name:  "ban",
		Usage: "ban <player> [channel]",
		Apply: func(r *channel.Registry, ch *channel.Channel, id member.ID, _ int, _ bool) (bool, error) {
			_, removed, err := r.Ban(ch, id)
			return removed, err
		},
		SenderKey: "cmdmsg.ban", ChannelKey: "channel.ban", TargetKey: "cmdmsg.banned",
	},
	{
		Name:  "unban",
		Usage: "unban <player> [channel]",
		Apply: func(_ *channel.Registry, ch *channel.Channel, id member.ID, _ int, _ bool) (bool, error) {
			return false, ch.Unban(id)
		},
		SenderKey: "cmdmsg.unban", ChannelKey: "channel.unban", TargetKey: "cmdmsg.unbanned",
	},
	{
		Name:  "kick",
		Usage: "kick <player> [channel]",
		Apply: func(r *channel.Registry, ch *channel.Channel, id member.ID, _ int, _ bool) (bool, error) {
			return r.Kick(ch, id)
		},
		SenderKey: "cmdmsg.kick", ChannelKey: "channel.kick", TargetKey: "cmdmsg.kicked",
	},
	{
		Name:          "kickmute",
		Usage:         "kickmute <player> [minutes] [channel]",
		AllowDuration: true,
		Apply: func(r *channel.Registry, ch *channel.Channel, id member.ID, minutes int, timed bool) (bool, error) {
			return r.KickMute(ch, id, minutes, timed)
		},
		SenderKey: "cmdmsg.kickmute", SenderTimedKey: "cmdmsg.kickmute_expire",
		ChannelKey: "channel.kickmute", ChannelTimedKey: "channel.kickmute_expire",
		TargetKey: "cmdmsg.kickmuted", TargetTimedKey: "cmdmsg.kickmuted_expire",
	},
	{
		Name:  "mod",
		Usage: "mod <player> [channel]",
		Apply: func(_ *channel.Registry, ch *channel.Channel, id member.ID, _ int, _ bool) (bool, error) {
			return false, ch.AddModerator(id)
		},
		SenderKey: "cmdmsg.mod", ChannelKey: "channel.mod", TargetKey: "cmdmsg.modded",
	},
	{
		Name:  "unmod",
		Usage: "unmod <player> [channel]",
		Apply: func(_ *channel.Registry, ch *channel.Channel, id member.ID, _ int, _ bool) (bool, error) {
			return false, ch.RemoveModerator(id)
		},
		SenderKey: "cmdmsg.unmod", ChannelKey: "channel.unmod", TargetKey: "cmdmsg.unmodded",
	},
}

// moderationArgs is the parsed form of "<target> [<minutes>|<channel>] [<channel>]".
type moderationArgs struct {
	target  string
	channel string
	minutes int
	timed   bool
}

// parseModerationArgs reports false when arguments are left over.
func parseModerationArgs(spec ModerationSpec, args []string) (moderationArgs, bool) {
	out := moderationArgs{target: args[0]}
	rest := args[1:]
	if len(rest) > 0 && spec.AllowDuration && channel.IsDuration(rest[0]) {
		out.timed = true
		// Out of range values, including overflow, fail the duration check later.
		if n, err := strconv.Atoi(rest[0]); err == nil {
			out.minutes = n
		}
		rest = rest[1:]
	}
	if len(rest) > 0 {
		out.channel = rest[0]
		rest = rest[1:]
	}
	return out, len(rest) == 0
}

// moderate runs the shared flow: channel, authority, target, mutation, notices.
func (e *Executor) moderate(ctx context.Context, spec ModerationSpec, s Sender, args []string) {
	parsed, ok := parseModerationArgs(spec, args)
	if !ok {
		e.fail(s, "", e.catalog.Error("errmsg.usage", spec.Usage))
		return
	}

	ch, err := e.channelFor(s, parsed.channel)
	if err != nil {
		e.report(s, err, "", parsed.channel)
		return
	}
	chName := ch.Name()

	if !e.canModerate(s, ch) {
		e.report(s, channel.ErrNotModerator, "", chName)
		return
	}

	targetID, err := e.resolver.Resolve(ctx, parsed.target)
	if err != nil {
		e.report(s, err, parsed.target, chName)
		return
	}
	targetName := e.resolver.DisplayName(ctx, targetID)

	channelRemoved, err := spec.Apply(e.registry, ch, targetID, parsed.minutes, parsed.timed)
	if err != nil {
		e.report(s, err, targetName, chName)
		return
	}

	e.log.Info().
		Str("command", spec.Name).
		Str("channel", chName).
		Str("sender", s.ID.String()).
		Str("target", targetID.String()).
		Int("minutes", parsed.minutes).
		Bool("timed", parsed.timed).
		Msg("moderation applied")

	senderKey, channelKey, targetKey := spec.keys(parsed.timed)
	fmtArgs := []any{targetName, chName, parsed.minutes, s.Name}

	e.reply(s, chName, e.catalog.Info(senderKey, fmtArgs...))
	if !channelRemoved {
		e.broadcast(ch, e.catalog.Format(channelKey, fmtArgs...), s.ID, targetID)
	}
	if targetID != s.ID {
		e.delivery.Send(targetID, core.Notice(chName, e.catalog.Info(targetKey, fmtArgs...)))
	}
}
