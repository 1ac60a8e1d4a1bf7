package command

import (
	"context"
	"strings"
	"time"

	"github.com/vovakirdan/chanserv/internal/channel"
	"github.com/vovakirdan/chanserv/internal/core"
	"github.com/vovakirdan/chanserv/internal/member"
)

var helpKeys = []string{
	"help.join", "help.leave", "help.create", "help.remove", "help.list",
	"help.info", "help.default", "help.mute", "help.unmute", "help.kick",
	"help.kickmute", "help.ban", "help.unban", "help.mod", "help.unmod",
}

func join(ctx context.Context, e *Executor, s Sender, args []string) {
	name := args[0]
	ch, created, err := e.registry.Join(name, s.ID)
	if err != nil {
		e.report(s, err, "", name)
		return
	}
	chName := ch.Name()
	if created {
		e.reply(s, chName, e.catalog.Info("cmdmsg.create", s.Name, chName))
	}
	e.reply(s, chName, e.catalog.Info("cmdmsg.join", s.Name, chName))
	e.broadcast(ch, e.catalog.Format("channel.join", s.Name, chName), s.ID)
	if e.chatConfig().showListOnJoin {
		list(ctx, e, s, nil)
	}
}

func leave(_ context.Context, e *Executor, s Sender, args []string) {
	var name string
	if len(args) > 0 {
		name = args[0]
	}
	ch, err := e.channelFor(s, name)
	if err != nil {
		e.report(s, err, "", name)
		return
	}
	chName := ch.Name()
	removed, err := e.registry.Leave(ch, s.ID)
	if err != nil {
		e.report(s, err, "", chName)
		return
	}
	e.reply(s, chName, e.catalog.Info("cmdmsg.leave", s.Name, chName))
	if !removed {
		e.broadcast(ch, e.catalog.Format("channel.leave", s.Name, chName), s.ID)
	}
}

func create(_ context.Context, e *Executor, s Sender, args []string) {
	name := args[0]
	ch, err := e.registry.Create(name, s.ID)
	if err != nil {
		e.report(s, err, "", name)
		return
	}
	e.reply(s, ch.Name(), e.catalog.Info("cmdmsg.create", s.Name, ch.Name()))
}

func remove(_ context.Context, e *Executor, s Sender, args []string) {
	name := args[0]
	ch, ok := e.registry.Get(name)
	if !ok {
		e.report(s, channel.ErrNotFound, "", name)
		return
	}
	chName := ch.Name()
	if !e.canModerate(s, ch) {
		e.report(s, channel.ErrNotModerator, "", chName)
		return
	}

	members := ch.Members()
	if err := e.registry.Remove(chName); err != nil {
		e.report(s, err, "", chName)
		return
	}
	e.log.Info().Str("channel", chName).Str("sender", s.ID.String()).Msg("channel removed")

	e.reply(s, chName, e.catalog.Info("cmdmsg.remove", "", chName))
	notice := core.Notice(chName, e.catalog.Format("channel.remove", "", chName, 0, s.Name))
	to := make([]member.ID, 0, len(members))
	for _, id := range members {
		if id != s.ID {
			to = append(to, id)
		}
	}
	if len(to) > 0 {
		e.delivery.Broadcast(to, notice)
	}
}

func list(_ context.Context, e *Executor, s Sender, _ []string) {
	channels := e.registry.List()
	if len(channels) == 0 {
		e.reply(s, "", e.catalog.Info("list.empty"))
		return
	}

	lines := []string{e.catalog.Info("list.header")}
	for _, ch := range channels {
		key := "list.entry"
		if ch.HasMember(s.ID) {
			key = "list.entry_joined"
		}
		lines = append(lines, e.catalog.Format(key, ch.Name(), ch.MemberCount()))
	}
	e.reply(s, "", strings.Join(lines, "\n"))
}

func info(ctx context.Context, e *Executor, s Sender, args []string) {
	var name string
	if len(args) > 0 {
		name = args[0]
	}
	ch, err := e.channelFor(s, name)
	if err != nil {
		e.report(s, err, "", name)
		return
	}

	st := ch.State()
	names := func(ids []member.ID) string {
		if len(ids) == 0 {
			return e.catalog.Format("info.none")
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = e.resolver.DisplayName(ctx, id)
		}
		return strings.Join(out, ", ")
	}

	muted := e.catalog.Format("info.none")
	if len(st.Muted) > 0 {
		parts := make([]string, len(st.Muted))
		for i, m := range st.Muted {
			parts[i] = e.resolver.DisplayName(ctx, m.ID)
			if m.Expires != nil {
				parts[i] = e.catalog.Format("info.expires", parts[i], m.Expires.UTC().Format(time.DateTime))
			}
		}
		muted = strings.Join(parts, ", ")
	}

	lines := []string{
		e.catalog.Info("info.header", st.Name),
		e.catalog.Format("info.members", names(st.Members)),
		e.catalog.Format("info.moderators", names(st.Moderators)),
		e.catalog.Format("info.muted", muted),
		e.catalog.Format("info.banned", names(st.Banned)),
	}
	e.reply(s, st.Name, strings.Join(lines, "\n"))
}

func setDefault(_ context.Context, e *Executor, s Sender, args []string) {
	name := args[0]
	ch, err := e.registry.SetDefault(s.ID, name)
	if err != nil {
		e.report(s, err, "", name)
		return
	}
	e.reply(s, ch.Name(), e.catalog.Info("cmdmsg.default", s.Name, ch.Name()))
}

func help(_ context.Context, e *Executor, s Sender, _ []string) {
	lines := []string{e.catalog.Info("help.header")}
	for _, key := range helpKeys {
		lines = append(lines, e.catalog.Format(key))
	}
	e.reply(s, "", strings.Join(lines, "\n"))
}
