package command

import (
	"errors"

	"github.com/vovakirdan/chanserv/internal/channel"
)

var errorKeys = map[string]string{
	channel.ErrCodeAlreadyMember:    "errmsg.already_member",
	channel.ErrCodeNotMember:        "errmsg.not_member",
	channel.ErrCodeAlreadyMuted:     "errmsg.already_muted",
	channel.ErrCodeNotMuted:         "errmsg.not_muted",
	channel.ErrCodeMuted:            "errmsg.muted",
	channel.ErrCodeInvalidDuration:  "errmsg.invalid_duration",
	channel.ErrCodeAlreadyBanned:    "errmsg.already_banned",
	channel.ErrCodeNotBanned:        "errmsg.not_banned",
	channel.ErrCodeBanned:           "errmsg.banned",
	channel.ErrCodeAlreadyModerator: "errmsg.already_moderator",
	channel.ErrCodeNotModeratorOf:   "errmsg.not_moderator_target",
	channel.ErrCodeAlreadyExists:    "errmsg.already_exists",
	channel.ErrCodeNotFound:         "errmsg.not_found",
	channel.ErrCodeInvalidName:      "errmsg.invalid_name",
	channel.ErrCodeNotModerator:     "errmsg.not_moderator",
	channel.ErrCodeNoChannel:        "errmsg.no_channel",
	channel.ErrCodePersistence:      "errmsg.persistence",
}

// report turns err into a message for the sender. target is the display name
// of the member the command acted on, empty when the sender acted on
// themselves.
func (e *Executor) report(s Sender, err error, target, channelName string) {
	var derr *channel.Error
	if !errors.As(err, &derr) {
		e.log.Error().Err(err).Str("member", s.ID.String()).Str("channel", channelName).Msg("command failed")
		e.fail(s, channelName, e.catalog.Error("errmsg.internal"))
		return
	}

	key, ok := errorKeys[derr.Code]
	if !ok {
		key = "errmsg.internal"
	}
	if derr.Code == channel.ErrCodeNotMember && target != "" {
		key = "errmsg.not_member_other"
	}

	ev := e.log.Debug()
	if derr.Kind == channel.KindPersistence {
		ev = e.log.Error()
	}
	ev.Str("kind", derr.Kind.String()).
		Str("code", derr.Code).
		Str("member", s.ID.String()).
		Str("channel", channelName).
		Msg("command rejected")

	e.fail(s, channelName, e.catalog.Error(key, target, channelName))
}
