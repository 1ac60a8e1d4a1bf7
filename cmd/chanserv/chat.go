package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/chanserv/internal/proto"
)

type chatOptions struct {
	server   string
	user     string
	password string
	channel  string
}

func newChatCommand() *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive client: plain lines are chat, lines starting with / are commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", "http://localhost:8080", "server base URL")
	flags.StringVar(&opts.user, "user", "", "username; empty logs in as a guest")
	flags.StringVar(&opts.password, "password", "", "password for --user")
	flags.StringVar(&opts.channel, "channel", "general", "channel to join on connect; empty skips the join")
	return cmd
}

func runChat(parent context.Context, opts chatOptions, in io.Reader, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	baseCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	token, err := fetchToken(ctx, opts)
	if err != nil {
		return err
	}

	wsURL, err := url.Parse(opts.server)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	wsURL.Scheme = strings.Replace(wsURL.Scheme, "http", "ws", 1)
	wsURL.Path = strings.TrimSuffix(wsURL.Path, "/") + "/ws"
	wsURL.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.Dial(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if opts.channel != "" {
		if err := sendFrame(ctx, conn, proto.InboundTypeJoin, proto.JoinData{Channel: opts.channel}); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "Type messages and press Enter to send, /help for commands. Ctrl+C to exit.")

	go func() {
		defer cancel()
		chatReadLoop(ctx, conn, out)
	}()

	chatWriteLoop(ctx, conn, in, out)

	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func fetchToken(ctx context.Context, opts chatOptions) (string, error) {
	endpoint := strings.TrimSuffix(opts.server, "/") + "/api/guest"
	var body io.Reader
	if opts.user != "" {
		endpoint = strings.TrimSuffix(opts.server, "/") + "/api/login"
		payload, err := json.Marshal(map[string]string{"username": opts.user, "password": opts.password})
		if err != nil {
			return "", err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || decoded.Token == "" {
		return "", fmt.Errorf("login failed: %s (%d)", decoded.Error, resp.StatusCode)
	}
	return decoded.Token, nil
}

func sendFrame(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func chatReadLoop(ctx context.Context, conn *websocket.Conn, out io.Writer) {
	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			fmt.Fprintf(out, "read error: %v\n", err)
			return
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			fmt.Fprintf(out, "! %s\n", outbound.Error.Msg)
			continue
		}

		switch outbound.Event {
		case proto.EventReady:
			var evt proto.EventReadyData
			if err := json.Unmarshal(outbound.Data, &evt); err == nil {
				fmt.Fprintf(out, "Connected as %s\n", evt.User)
			}
		case proto.EventMessage:
			var evt proto.EventMessageData
			if err := json.Unmarshal(outbound.Data, &evt); err == nil {
				fmt.Fprintln(out, evt.Line)
			}
		case proto.EventNotice:
			var evt proto.EventNoticeData
			if err := json.Unmarshal(outbound.Data, &evt); err == nil {
				fmt.Fprintln(out, evt.Text)
			}
		default:
			fmt.Fprintf(out, "event=%s data=%s\n", outbound.Event, outbound.Data)
		}
	}
}

func chatWriteLoop(ctx context.Context, conn *websocket.Conn, in io.Reader, out io.Writer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			if strings.HasPrefix(text, "/") {
				err = sendFrame(ctx, conn, proto.InboundTypeCmd, proto.CmdData{Line: text})
			} else {
				err = sendFrame(ctx, conn, proto.InboundTypeMsg, proto.MsgData{Text: text})
			}
			if err != nil {
				fmt.Fprintln(out, err)
				return
			}
		}
	}
}
