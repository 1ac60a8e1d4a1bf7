package channel

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vovakirdan/chanserv/internal/member"
	"github.com/vovakirdan/chanserv/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
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

// recordingSink keeps every submitted write in order.
type recordingSink struct {
	mu       sync.Mutex
	saves    []store.ChannelRecord
	deletes  []string
	defaults map[string]string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{defaults: make(map[string]string)}
}

func (s *recordingSink) SaveChannel(rec store.ChannelRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, rec)
}

func (s *recordingSink) DeleteChannel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, name)
}

func (s *recordingSink) SaveDefault(memberID, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel == "" {
		delete(s.defaults, memberID)
		return
	}
	s.defaults[memberID] = channel
}

func (s *recordingSink) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *recordingSink) last() store.ChannelRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

// memChannelStore is an in-memory store.ChannelStore.
type memChannelStore struct {
	mu       sync.Mutex
	channels map[string]store.ChannelRecord
	defaults map[string]string
	writes   []string
	failNext int
}

func newMemChannelStore() *memChannelStore {
	return &memChannelStore{
		channels: make(map[string]store.ChannelRecord),
		defaults: make(map[string]string),
	}
}

func (m *memChannelStore) LoadChannels(context.Context) ([]store.ChannelRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.ChannelRecord, 0, len(m.channels))
	for _, rec := range m.channels {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memChannelStore) SaveChannel(_ context.Context, rec store.ChannelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return errTransient
	}
	m.channels[strings.ToLower(rec.Name)] = rec
	m.writes = append(m.writes, "save:"+rec.Name)
	return nil
}

func (m *memChannelStore) DeleteChannel(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, strings.ToLower(name))
	m.writes = append(m.writes, "delete:"+name)
	return nil
}

func (m *memChannelStore) LoadDefaults(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.defaults))
	for k, v := range m.defaults {
		out[k] = v
	}
	return out, nil
}

func (m *memChannelStore) SaveDefault(_ context.Context, memberID, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if channel == "" {
		delete(m.defaults, memberID)
	} else {
		m.defaults[memberID] = channel
	}
	return nil
}

func (m *memChannelStore) Close() error { return nil }

func (m *memChannelStore) get(name string) (store.ChannelRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.channels[strings.ToLower(name)]
	return rec, ok
}

type transientError struct{}

func (transientError) Error() string { return "transient" }

var errTransient error = transientError{}

var (
	alice = member.OfflineID("alice")
	bob   = member.OfflineID("bob")
	carol = member.OfflineID("carol")
)

// newTestChannel returns a channel with the given members already joined.
func newTestChannel(clock *fakeClock, sink Sink, ids ...member.ID) *Channel {
	ch := New("Lobby", sink, clock.Now)
	for _, id := range ids {
		if err := ch.AddMember(id); err != nil {
			panic(err)
		}
	}
	return ch
}
