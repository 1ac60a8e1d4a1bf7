package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/vovakirdan/chanserv/internal/member"
)

func TestHealthEndpoint(t *testing.T) {
	s := startTestServer(t, nil)

	resp, err := s.ts.Client().Get(s.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := startTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/register", "", RegisterRequest{Username: "alice", Password: "password123"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created.Token == "" {
		t.Fatalf("register response: %s, %v", rec.Body.String(), err)
	}

	rec = s.do(t, http.MethodPost, "/api/register", "", RegisterRequest{Username: "ALICE", Password: "password123"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/register", "", RegisterRequest{Username: "bad name", Password: "password123"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid username: expected 400, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/register", "", map[string]string{"username": "bob"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password: expected 400, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "alice", Password: "wrong-password"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "Alice", Password: "password123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGuestLogin(t *testing.T) {
	s := startTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/guest", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("guest: expected 200, got %d", rec.Code)
	}
	var resp AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := s.auth.ValidateToken(resp.Token)
	if err != nil || !claims.IsGuest {
		t.Fatalf("guest token: %+v, %v", claims, err)
	}
	if rec.Result().Cookies()[0].Name != "guest_session" {
		t.Fatal("expected guest_session cookie")
	}
}

func TestChannelsRequireAuth(t *testing.T) {
	s := startTestServer(t, nil)

	for _, path := range []string{"/api/channels", "/api/channels/general"} {
		if rec := s.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: expected 401, got %d", path, rec.Code)
		}
		if rec := s.do(t, http.MethodGet, path, "garbage", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestListAndGetChannels(t *testing.T) {
	s := startTestServer(t, nil)
	aliceToken := s.register(t, "alice")
	s.register(t, "bob")

	alice := member.OfflineID("alice")
	bob := member.OfflineID("bob")
	general, _, err := s.registry.Join("general", alice)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, _, err := s.registry.Join("general", bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, _, err := s.registry.Join("dev", bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := general.MuteFor(bob, 5); err != nil {
		t.Fatalf("mute: %v", err)
	}

	rec := s.do(t, http.MethodGet, "/api/channels", aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var listed []ChannelResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed) != 2 || listed[0].Name != "dev" || listed[1].Name != "general" {
		t.Fatalf("unexpected listing: %+v", listed)
	}
	if listed[0].Member || !listed[1].Member || !listed[1].Moderator || listed[1].Members != 2 {
		t.Fatalf("unexpected caller flags: %+v", listed)
	}

	rec = s.do(t, http.MethodGet, "/api/channels?mine=true", aliceToken, nil)
	listed = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "general" {
		t.Fatalf("unexpected own channels: %+v", listed)
	}

	rec = s.do(t, http.MethodGet, "/api/channels/GENERAL", aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail: expected 200, got %d", rec.Code)
	}
	var detail ChannelDetailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Name != "general" || len(detail.Members) != 2 || len(detail.Moderators) != 1 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if detail.Moderators[0].Name != "alice" {
		t.Fatalf("expected display name for moderator, got %+v", detail.Moderators[0])
	}
	if len(detail.Muted) != 1 || detail.Muted[0].ID != bob.String() || detail.Muted[0].ExpiresAt == "" {
		t.Fatalf("unexpected mutes: %+v", detail.Muted)
	}

	if rec := s.do(t, http.MethodGet, "/api/channels/missing", aliceToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing channel: expected 404, got %d", rec.Code)
	}
}
