package core

import (
	"testing"

	"github.com/vovakirdan/chanserv/internal/member"
)

func TestHubSendReachesEverySession(t *testing.T) {
	hub := NewHub(nil)
	id := member.OfflineID("alice")

	first := NewClient(id, "alice", false)
	second := NewClient(id, "alice", false)
	hub.Register(first)
	hub.Register(second)

	hub.Send(id, Notice("general", "hello"))

	for _, c := range []*Client{first, second} {
		ev := mustEvent(t, c.Events, EventNotice)
		if ev.Text != "hello" || ev.Channel != "general" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}
	if hub.OnlineCount() != 1 {
		t.Fatalf("expected 1 online member, got %d", hub.OnlineCount())
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(nil)
	id := member.OfflineID("alice")
	c := NewClient(id, "alice", false)

	hub.Register(c)
	if !hub.Online(id) {
		t.Fatal("expected member online")
	}
	hub.Unregister(c)
	if hub.Online(id) {
		t.Fatal("expected member offline")
	}

	hub.Send(id, Notice("", "lost"))
	mustBeEmpty(t, c.Events)

	// Unregistering twice is harmless.
	hub.Unregister(c)
}

func TestHubBroadcastSkipsOffline(t *testing.T) {
	hub := NewHub(nil)
	alice := NewClient(member.OfflineID("alice"), "alice", false)
	bob := NewClient(member.OfflineID("bob"), "bob", false)
	hub.Register(alice)
	hub.Register(bob)

	ev := &Event{
		Kind:    EventMessage,
		Channel: "general",
		Text:    "[general] alice: hi",
		Message: &Message{Channel: "general", From: "alice", Text: "hi"},
	}
	hub.Broadcast([]member.ID{alice.ID, bob.ID, member.OfflineID("carol")}, ev)

	got := mustEvent(t, bob.Events, EventMessage)
	if got.Message == nil || got.Message.Text != "hi" || got.Message.From != "alice" {
		t.Fatalf("unexpected message event: %+v", got)
	}
	mustEvent(t, alice.Events, EventMessage)
}

func TestHubBroadcastAll(t *testing.T) {
	hub := NewHub(nil)
	alice := NewClient(member.OfflineID("alice"), "alice", false)
	bob := NewClient(member.OfflineID("bob"), "bob", false)
	gone := NewClient(member.OfflineID("carol"), "carol", false)
	hub.Register(alice)
	hub.Register(bob)
	hub.Register(gone)
	hub.Unregister(gone)

	hub.BroadcastAll(Notice("", "everyone"))

	for _, c := range []*Client{alice, bob} {
		if ev := mustEvent(t, c.Events, EventNotice); ev.Text != "everyone" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}
	mustBeEmpty(t, gone.Events)
}

func TestHubDropsForSlowConsumer(t *testing.T) {
	hub := NewHub(nil)
	c := NewClient(member.OfflineID("slow"), "slow", false)
	hub.Register(c)

	for i := 0; i < clientEventBuffer+10; i++ {
		hub.Send(c.ID, Notice("", "spam"))
	}
	if len(c.Events) != clientEventBuffer {
		t.Fatalf("expected full queue of %d, got %d", clientEventBuffer, len(c.Events))
	}
}

func TestNewClientDefaultsName(t *testing.T) {
	id := member.OfflineID("nobody")
	c := NewClient(id, "", true)
	if c.Name != id.String() {
		t.Fatalf("expected name to default to id, got %q", c.Name)
	}
	if !c.IsGuest {
		t.Fatal("expected guest flag")
	}
}
