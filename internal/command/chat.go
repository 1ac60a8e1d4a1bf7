package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vovakirdan/chanserv/internal/channel"
	"github.com/vovakirdan/chanserv/internal/core"
)

// Chat posts text to the named channel, or to the sender's default channel
// when name is empty. The sender must be a member and not muted. A line
// starting with the global marker, or chat from a member without a channel
// when NoJoinAsGlobal is set, goes to global chat instead.
func (e *Executor) Chat(_ context.Context, s Sender, name, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	cfg := e.chatConfig()

	global := false
	if cfg.globalMarker != "" && strings.HasPrefix(text, cfg.globalMarker) {
		text = strings.TrimSpace(strings.TrimPrefix(text, cfg.globalMarker))
		if text == "" {
			return
		}
		global = true
	}

	var ch *channel.Channel
	if !global {
		var err error
		ch, err = e.channelFor(s, name)
		switch {
		case errors.Is(err, channel.ErrNoChannel) && cfg.noJoinAsGlobal:
			global = true
		case err != nil:
			e.report(s, err, "", name)
			return
		}
	}

	if global {
		if cfg.globalChannel == "" {
			e.chatEveryone(s, text, cfg)
			return
		}
		var err error
		ch, err = e.globalChannel(s, cfg.globalChannel)
		if err != nil {
			e.report(s, err, "", cfg.globalChannel)
			return
		}
	}
	e.chatChannel(s, ch, text, cfg)
}

func (e *Executor) chatChannel(s Sender, ch *channel.Channel, text string, cfg chatSettings) {
	chName := ch.Name()
	if !ch.HasMember(s.ID) {
		e.report(s, channel.ErrNotMember, "", chName)
		return
	}
	if ch.IsMuted(s.ID) {
		e.report(s, channel.ErrMuted, "", chName)
		return
	}

	text, matched, action := e.filter(text)
	if matched && action != ActionMask {
		e.punish(s, ch, action)
		return
	}

	msg := &core.Message{
		Channel:   chName,
		FromID:    s.ID.String(),
		From:      s.Name,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	e.logChat(cfg, chName, s, text)
	e.delivery.Broadcast(ch.Members(), &core.Event{
		Kind:    core.EventMessage,
		Channel: chName,
		Text:    e.catalog.Format("chat.format", chName, s.Name, text),
		Message: msg,
	})
}

// chatEveryone delivers to every online member. There is no channel to kick
// or ban from, so NG words are always masked.
func (e *Executor) chatEveryone(s Sender, text string, cfg chatSettings) {
	text, _, _ = e.filter(text)
	msg := &core.Message{
		FromID:    s.ID.String(),
		From:      s.Name,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	e.logChat(cfg, "", s, text)
	e.delivery.BroadcastAll(&core.Event{
		Kind:    core.EventMessage,
		Text:    e.catalog.Format("chat.format_global", s.Name, text),
		Message: msg,
	})
}

// globalChannel returns the configured global channel with the sender in it,
// creating the channel on first use.
func (e *Executor) globalChannel(s Sender, name string) (*channel.Channel, error) {
	ch, _, err := e.registry.GetOrCreate(name, s.ID)
	if err != nil {
		return nil, err
	}
	if err := ch.AddMember(s.ID); err != nil && !errors.Is(err, channel.ErrAlreadyMember) {
		return nil, err
	}
	return ch, nil
}

func (e *Executor) logChat(cfg chatSettings, chName string, s Sender, text string) {
	if !cfg.logChat {
		return
	}
	e.log.Info().
		Str("channel", chName).
		Str("member", s.ID.String()).
		Str("name", s.Name).
		Str("text", text).
		Msg("chat")
}

// filter masks every NG word in text. matched reports whether any was found.
func (e *Executor) filter(text string) (out string, matched bool, action string) {
	e.mu.RLock()
	words, action := e.ngWords, e.ngAction
	e.mu.RUnlock()

	out = text
	for _, re := range words {
		out = re.ReplaceAllStringFunc(out, func(w string) string {
			matched = true
			return strings.Repeat("*", len([]rune(w)))
		})
	}
	return out, matched, action
}

func (e *Executor) punish(s Sender, ch *channel.Channel, action string) {
	chName := ch.Name()
	var (
		removed   bool
		err       error
		targetKey = "chat.ngword_kicked"
		chanKey   = "channel.kick"
	)
	switch action {
	case ActionBan:
		targetKey, chanKey = "chat.ngword_banned", "channel.ban"
		_, removed, err = e.registry.Ban(ch, s.ID)
	default:
		removed, err = e.registry.Kick(ch, s.ID)
	}
	if err != nil {
		e.report(s, err, "", chName)
		return
	}

	e.log.Info().Str("channel", chName).Str("member", s.ID.String()).Str("action", action).Msg("ng word punished")
	e.fail(s, chName, e.catalog.Info(targetKey, s.Name, chName))
	if !removed {
		e.broadcast(ch, e.catalog.Format(chanKey, s.Name, chName), s.ID)
	}
}

// NotifyExpired tells members whose timed mute ran out.
func (e *Executor) NotifyExpired(ctx context.Context, expired []channel.Expired) {
	for _, x := range expired {
		name := e.resolver.DisplayName(ctx, x.ID)
		e.delivery.Send(x.ID, core.Notice(x.Channel, e.catalog.Info("cmdmsg.mute_expired", name, x.Channel)))
	}
}
