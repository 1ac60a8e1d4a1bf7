package http

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/vovakirdan/chanserv/internal/command"
	"github.com/vovakirdan/chanserv/internal/core"
	"github.com/vovakirdan/chanserv/internal/proto"
)

// dispatch hands one inbound frame to the executor. Replies travel back
// through the hub; only malformed frames produce a direct protocol error.
func dispatch(ctx context.Context, exec *command.Executor, s command.Sender, inbound proto.Inbound) (*proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin, proto.InboundTypeLeave:
		var data proto.JoinData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, err
		}
		channelName := strings.TrimSpace(data.Channel)
		if inbound.Type == proto.InboundTypeLeave {
			if channelName == "" {
				exec.Run(ctx, s, "leave")
			} else {
				exec.Run(ctx, s, "leave", channelName)
			}
			return nil, nil
		}
		if channelName == "" {
			return &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "channel is required"}, nil
		}
		exec.Run(ctx, s, "join", channelName)
		return nil, nil
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Text) == "" {
			return &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "text is required"}, nil
		}
		exec.Chat(ctx, s, strings.TrimSpace(msg.Channel), msg.Text)
		return nil, nil
	case proto.InboundTypeCmd:
		var cmd proto.CmdData
		if err := json.Unmarshal(inbound.Data, &cmd); err != nil {
			return nil, err
		}
		if !exec.Execute(ctx, s, cmd.Line) {
			return &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "command is required"}, nil
		}
		return nil, nil
	default:
		return &proto.Error{Code: proto.ErrCodeUnknownType, Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		data := proto.EventMessageData{Channel: event.Channel, Line: event.Text}
		if m := event.Message; m != nil {
			data.Channel = m.Channel
			data.UserID = m.FromID
			data.User = m.From
			data.Text = m.Text
			data.TS = m.CreatedAt.Unix()
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessage,
			Data:  data,
		}
	case core.EventNotice:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNotice,
			Data:  proto.EventNoticeData{Channel: event.Channel, Text: event.Text},
		}
	case core.EventError:
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: proto.ErrCodeRejected, Msg: event.Text, Channel: event.Channel},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
