package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanserv/internal/auth"
	"github.com/vovakirdan/chanserv/internal/channel"
	"github.com/vovakirdan/chanserv/internal/command"
	"github.com/vovakirdan/chanserv/internal/config"
	"github.com/vovakirdan/chanserv/internal/core"
	"github.com/vovakirdan/chanserv/internal/i18n"
	"github.com/vovakirdan/chanserv/internal/member"
	"github.com/vovakirdan/chanserv/internal/proto"
	"github.com/vovakirdan/chanserv/internal/store/sqlite"
)

type testServer struct {
	ts       *httptest.Server
	auth     *auth.Service
	registry *channel.Registry
	hub      *core.Hub
}

// startTestServer wires the full HTTP stack over an in-memory database.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"
	cfg.Moderation.Admins = []string{"root"}
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	})
	resolver, err := member.NewResolver(st, 0)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	registry := channel.NewRegistry(channel.Options{
		ZeroMemberRemove: cfg.Channels.ZeroMemberRemove,
		CreateOnJoin:     cfg.Channels.CreateOnJoin,
		MaxNameLength:    cfg.Channels.MaxNameLength,
	}, nil, &logger, nil)
	hub := core.NewHub(&logger)
	exec, err := command.NewExecutor(registry, resolver, i18n.Default(), hub, command.Config{
		Admins:       cfg.Moderation.Admins,
		NGWords:      cfg.Chat.NGWords,
		NGWordAction: cfg.Chat.NGWordAction,

		GlobalChannel:  cfg.Channels.GlobalChannel,
		GlobalMarker:   cfg.Chat.GlobalMarker,
		NoJoinAsGlobal: cfg.Chat.NoJoinAsGlobal,
		ShowListOnJoin: cfg.Channels.ShowListOnJoin,
	}, &logger)
	if err != nil {
		t.Fatalf("executor: %v", err)
	}

	server := NewServer(Deps{
		Hub:      hub,
		Executor: exec,
		Registry: registry,
		Resolver: resolver,
		Auth:     authService,
	}, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, auth: authService, registry: registry, hub: hub}
}

func (s *testServer) register(t *testing.T, username string) string {
	t.Helper()
	token, err := s.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ts.Config.Handler.ServeHTTP(rec, req)
	return rec
}

// frame is an outbound envelope with its payload left undecoded.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func (f frame) notice(t *testing.T) proto.EventNoticeData {
	t.Helper()
	var n proto.EventNoticeData
	if err := json.Unmarshal(f.Data, &n); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	return n
}

func (f frame) message(t *testing.T) proto.EventMessageData {
	t.Helper()
	var m proto.EventMessageData
	if err := json.Unmarshal(f.Data, &m); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return m
}

type wsClient struct {
	conn  *websocket.Conn
	ready proto.EventReadyData
}

func (s *testServer) wsURL(token string) string {
	return strings.Replace(s.ts.URL, "http", "ws", 1) + "/ws?token=" + token
}

// dial connects and consumes the ready frame.
func (s *testServer) dial(t *testing.T, token string) *wsClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, s.wsURL(token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	c := &wsClient{conn: conn}
	f := c.next(t)
	if f.Type != proto.OutboundTypeEvent || f.Event != proto.EventReady {
		t.Fatalf("expected ready frame, got %+v", f)
	}
	if err := json.Unmarshal(f.Data, &c.ready); err != nil {
		t.Fatalf("decode ready: %v", err)
	}
	return c
}

func (c *wsClient) send(t *testing.T, typ string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func (c *wsClient) cmd(t *testing.T, line string) {
	t.Helper()
	c.send(t, proto.InboundTypeCmd, proto.CmdData{Line: line})
}

func (c *wsClient) next(t *testing.T) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f frame
	if err := wsjson.Read(ctx, c.conn, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// until reads frames until match accepts one.
func (c *wsClient) until(t *testing.T, match func(frame) bool) frame {
	t.Helper()
	for i := 0; i < 50; i++ {
		if f := c.next(t); match(f) {
			return f
		}
	}
	t.Fatal("no matching frame")
	return frame{}
}

func noticeContaining(text string) func(frame) bool {
	return func(f frame) bool {
		return f.Event == proto.EventNotice && strings.Contains(string(f.Data), text)
	}
}

func errorCode(code string) func(frame) bool {
	return func(f frame) bool {
		return f.Type == proto.OutboundTypeError && f.Error != nil && f.Error.Code == code
	}
}
