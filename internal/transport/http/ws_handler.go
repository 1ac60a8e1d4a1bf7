package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanserv/internal/auth"
	"github.com/vovakirdan/chanserv/internal/command"
	"github.com/vovakirdan/chanserv/internal/core"
	"github.com/vovakirdan/chanserv/internal/member"
	"github.com/vovakirdan/chanserv/internal/proto"
)

// WSHandler upgrades authenticated HTTP connections and bridges them to the
// hub and the command executor.
type WSHandler struct {
	hub       *core.Hub
	exec      *command.Executor
	resolver  *member.Resolver
	auth      *auth.Service
	rateLimit int
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. rateLimit caps inbound
// frames per minute per connection; 0 disables the cap.
func NewWSHandler(
	hub *core.Hub,
	exec *command.Executor,
	resolver *member.Resolver,
	authService *auth.Service,
	rateLimit int,
	logger *zerolog.Logger,
) stdhttp.Handler {
	return &WSHandler{
		hub:       hub,
		exec:      exec,
		resolver:  resolver,
		auth:      authService,
		rateLimit: rateLimit,
		log:       logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws rejected: invalid token")
		stdhttp.Error(w, "invalid token", stdhttp.StatusUnauthorized)
		return
	}
	identity := claims.Member()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := core.NewClient(identity.ID, identity.Name, claims.IsGuest)
	h.resolver.Remember(client.ID, client.Name)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	logger := h.log.With().Str("member", client.ID.String()).Str("user", client.Name).Logger()
	logger.Info().Msg("ws connected")

	ready := proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventReady,
		Data: proto.EventReadyData{
			MemberID: client.ID.String(),
			User:     client.Name,
			Guest:    client.IsGuest,
			Protocol: proto.ProtocolVersion,
		},
	}
	if err := wsjson.Write(ctx, conn, ready); err != nil {
		logger.Warn().Err(err).Msg("write ready")
		return
	}

	limiter := newRateLimiter(h.rateLimit)
	limiter.startReset(ctx.Done())

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	logger.Info().Msg("ws disconnected")
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, limiter *rateLimiter, logger *zerolog.Logger) error {
	sender := command.Sender{ID: client.ID, Name: client.Name}
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			logger.Debug().Err(err).Msg("read ws inbound")
			return err
		}

		if !limiter.allow() {
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: proto.ErrCodeRateLimited, Msg: "too many messages, slow down"},
			}); err != nil {
				return err
			}
			continue
		}

		protoErr, err := dispatch(ctx, h.exec, sender, inbound)
		if err != nil {
			logger.Warn().Err(err).Str("type", inbound.Type).Msg("failed to decode inbound")
			protoErr = &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "malformed data"}
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
