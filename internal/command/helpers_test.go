package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chanserv/internal/channel"
	"github.com/vovakirdan/chanserv/internal/core"
	"github.com/vovakirdan/chanserv/internal/i18n"
	"github.com/vovakirdan/chanserv/internal/member"
)

type recorder struct {
	mu     sync.Mutex
	events map[member.ID][]*core.Event
	all    []*core.Event
}

func newRecorder() *recorder {
	return &recorder{events: make(map[member.ID][]*core.Event)}
}

func (r *recorder) Send(to member.ID, ev *core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[to] = append(r.events[to], ev)
}

func (r *recorder) Broadcast(to []member.ID, ev *core.Event) {
	for _, id := range to {
		r.Send(id, ev)
	}
}

func (r *recorder) BroadcastAll(ev *core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, ev)
}

func (r *recorder) everyone() []*core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*core.Event(nil), r.all...)
}

func (r *recorder) of(id member.ID) []*core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*core.Event(nil), r.events[id]...)
}

func (r *recorder) last(t *testing.T, id member.ID) *core.Event {
	t.Helper()
	evs := r.of(id)
	require.NotEmpty(t, evs, "no events for %s", id)
	return evs[len(evs)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = make(map[member.ID][]*core.Event)
	r.all = nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	exec     *Executor
	registry *channel.Registry
	out      *recorder
	clock    *fakeClock
	catalog  *i18n.Catalog
	resolver *member.Resolver
}

func newEnv(t *testing.T, opts channel.Options, cfg Config) *env {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg := channel.NewRegistry(opts, nil, nil, clock.Now)
	resolver, err := member.NewResolver(nil, 0)
	require.NoError(t, err)
	out := newRecorder()
	catalog := i18n.Default()

	exec, err := NewExecutor(reg, resolver, catalog, out, cfg, nil)
	require.NoError(t, err)
	return &env{exec: exec, registry: reg, out: out, clock: clock, catalog: catalog, resolver: resolver}
}

func (e *env) sender(name string) Sender {
	id := member.OfflineID(name)
	e.resolver.Remember(id, name)
	return Sender{ID: id, Name: name}
}

func (e *env) run(s Sender, line string) {
	e.exec.Execute(context.Background(), s, line)
}

// general builds channel "general" owned by the first sender with the
// others joined.
func (e *env) general(t *testing.T, owner Sender, others ...Sender) *channel.Channel {
	t.Helper()
	ch, err := e.registry.Create("general", owner.ID)
	require.NoError(t, err)
	for _, s := range others {
		_, _, err := e.registry.Join("general", s.ID)
		require.NoError(t, err)
	}
	e.out.reset()
	return ch
}
