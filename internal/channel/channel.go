package channel

import (
	"slices"
	"sync"
	"time"

	"github.com/vovakirdan/chanserv/internal/member"
	"github.com/vovakirdan/chanserv/internal/store"
)

// Mute durations are whole minutes within [MinMuteMinutes, MaxMuteMinutes].
const (
	MinMuteMinutes = 1
	MaxMuteMinutes = 43200 // 30 days
)

// Sink receives a snapshot after every structural mutation.
// Implementations must preserve call order per channel.
type Sink interface {
	SaveChannel(rec store.ChannelRecord)
	DeleteChannel(name string)
}

type set map[member.ID]struct{}

func (s set) has(id member.ID) bool {
	_, ok := s[id]
	return ok
}

func (s set) sorted() []member.ID {
	out := make([]member.ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Channel holds membership and moderation state of one named channel.
// All methods are safe for concurrent use; each one validates and mutates
// under the channel lock.
type Channel struct {
	name string
	now  func() time.Time
	sink Sink

	mu          sync.Mutex
	detached    bool
	members     set
	moderators  set
	muted       set
	muteExpires map[member.ID]time.Time
	banned      set
}

// New creates an empty channel. A nil now defaults to time.Now; a nil sink
// disables persistence.
func New(name string, sink Sink, now func() time.Time) *Channel {
	if now == nil {
		now = time.Now
	}
	return &Channel{
		name:        name,
		now:         now,
		sink:        sink,
		members:     make(set),
		moderators:  make(set),
		muted:       make(set),
		muteExpires: make(map[member.ID]time.Time),
		banned:      make(set),
	}
}

// Name returns the channel name as created.
func (c *Channel) Name() string { return c.name }

// AddMember inserts id into the member set.
func (c *Channel) AddMember(id member.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		return ErrNotFound
	}
	if c.banned.has(id) {
		return ErrBanned
	}
	if c.members.has(id) {
		return ErrAlreadyMember
	}
	c.members[id] = struct{}{}
	c.persistLocked()
	return nil
}

// RemoveMember deletes id from the member set and returns how many members
// remain. Moderator, mute and ban entries are left untouched.
func (c *Channel) RemoveMember(id member.ID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		return 0, ErrNotFound
	}
	if !c.members.has(id) {
		return len(c.members), ErrNotMember
	}
	delete(c.members, id)
	c.persistLocked()
	return len(c.members), nil
}

// HasMember reports whether id is a member.
func (c *Channel) HasMember(id member.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members.has(id)
}

// MemberCount returns the number of members.
func (c *Channel) MemberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members)
}

// Members returns the member ids in a stable order.
func (c *Channel) Members() []member.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members.sorted()
}

// Mute silences a member until unmuted.
func (c *Channel) Mute(id member.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.muteLocked(id, 0, false); err != nil {
		return err
	}
	c.persistLocked()
	return nil
}

// MuteFor silences a member for the given number of minutes.
func (c *Channel) MuteFor(id member.ID, minutes int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.muteLocked(id, minutes, true); err != nil {
		return err
	}
	c.persistLocked()
	return nil
}

// muteLocked checks membership, then an existing mute, then the duration.
func (c *Channel) muteLocked(id member.ID, minutes int, timed bool) error {
	if c.detached {
		return ErrNotFound
	}
	if !c.members.has(id) {
		return ErrNotMember
	}
	c.evictExpiredLocked(id)
	if c.muted.has(id) {
		return ErrAlreadyMuted
	}
	if timed && (minutes < MinMuteMinutes || minutes > MaxMuteMinutes) {
		return ErrInvalidDuration
	}

	c.muted[id] = struct{}{}
	if timed {
		c.muteExpires[id] = c.now().Add(time.Duration(minutes) * time.Minute)
	}
	return nil
}

// Unmute lifts a mute, timed or not.
func (c *Channel) Unmute(id member.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		return ErrNotFound
	}
	evicted := c.evictExpiredLocked(id)
	if !c.muted.has(id) {
		if evicted {
			c.persistLocked()
		}
		return ErrNotMuted
	}
	delete(c.muted, id)
	delete(c.muteExpires, id)
	c.persistLocked()
	return nil
}

// IsMuted reports whether id is currently muted. An expired timed mute is
// evicted on the way.
func (c *Channel) IsMuted(id member.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.evictExpiredLocked(id) {
		c.persistLocked()
		return false
	}
	return c.muted.has(id)
}

// MuteExpiry returns the expiry of a timed mute.
func (c *Channel) MuteExpiry(id member.ID) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.muteExpires[id]
	return t, ok
}

// ExpireMutes evicts every expired timed mute and returns the affected ids.
func (c *Channel) ExpireMutes() []member.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []member.ID
	for id := range c.muteExpires {
		if c.evictExpiredLocked(id) {
			expired = append(expired, id)
		}
	}
	if len(expired) > 0 {
		slices.Sort(expired)
		c.persistLocked()
	}
	return expired
}

func (c *Channel) evictExpiredLocked(id member.ID) bool {
	expiry, ok := c.muteExpires[id]
	if !ok || expiry.After(c.now()) {
		return false
	}
	delete(c.muteExpires, id)
	delete(c.muted, id)
	return true
}

// KickMute mutes a member (permanently) and removes them in one step.
// It returns how many members remain.
func (c *Channel) KickMute(id member.ID) (int, error) {
	return c.kickMute(id, 0, false)
}

// KickMuteFor mutes a member for minutes and removes them in one step.
func (c *Channel) KickMuteFor(id member.ID, minutes int) (int, error) {
	return c.kickMute(id, minutes, true)
}

func (c *Channel) kickMute(id member.ID, minutes int, timed bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.muteLocked(id, minutes, timed); err != nil {
		return len(c.members), err
	}
	delete(c.members, id)
	c.persistLocked()
	return len(c.members), nil
}

// Ban forbids id from joining. A current member is removed; removed reports
// whether that happened.
func (c *Channel) Ban(id member.ID) (removed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		return false, ErrNotFound
	}
	if c.banned.has(id) {
		return false, ErrAlreadyBanned
	}
	if c.members.has(id) {
		delete(c.members, id)
		removed = true
	}
	c.banned[id] = struct{}{}
	c.persistLocked()
	return removed, nil
}

// Unban lifts a ban.
func (c *Channel) Unban(id member.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		return ErrNotFound
	}
	if !c.banned.has(id) {
		return ErrNotBanned
	}
	delete(c.banned, id)
	c.persistLocked()
	return nil
}

// IsBanned reports whether id is banned.
func (c *Channel) IsBanned(id member.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banned.has(id)
}

// AddModerator grants moderator authority. The target must be a member.
func (c *Channel) AddModerator(id member.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		return ErrNotFound
	}
	if !c.members.has(id) {
		return ErrNotMember
	}
	if c.moderators.has(id) {
		return ErrAlreadyModerator
	}
	c.moderators[id] = struct{}{}
	c.persistLocked()
	return nil
}

// RemoveModerator revokes moderator authority.
func (c *Channel) RemoveModerator(id member.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		return ErrNotFound
	}
	if !c.moderators.has(id) {
		return ErrNotModeratorOf
	}
	delete(c.moderators, id)
	c.persistLocked()
	return nil
}

// IsModerator reports whether id is in the moderator set. Global override
// permissions are the caller's concern.
func (c *Channel) IsModerator(id member.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moderators.has(id)
}

// MuteEntry describes one muted member.
type MuteEntry struct {
	ID      member.ID
	Expires *time.Time
}

// State is a point-in-time copy of a channel for display.
type State struct {
	Name       string
	Members    []member.ID
	Moderators []member.ID
	Muted      []MuteEntry
	Banned     []member.ID
}

// State returns a copy of the channel for display.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	muted := make([]MuteEntry, 0, len(c.muted))
	for _, id := range c.muted.sorted() {
		entry := MuteEntry{ID: id}
		if t, ok := c.muteExpires[id]; ok {
			entry.Expires = &t
		}
		muted = append(muted, entry)
	}
	return State{
		Name:       c.name,
		Members:    c.members.sorted(),
		Moderators: c.moderators.sorted(),
		Muted:      muted,
		Banned:     c.banned.sorted(),
	}
}

// Snapshot returns the persisted form of the channel.
func (c *Channel) Snapshot() store.ChannelRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Channel) snapshotLocked() store.ChannelRecord {
	rec := store.ChannelRecord{
		Name:       c.name,
		Members:    idStrings(c.members.sorted()),
		Moderators: idStrings(c.moderators.sorted()),
		Muted:      idStrings(c.muted.sorted()),
		Banned:     idStrings(c.banned.sorted()),
	}
	if len(c.muteExpires) > 0 {
		rec.MuteExpires = make(map[string]int64, len(c.muteExpires))
		for id, t := range c.muteExpires {
			rec.MuteExpires[string(id)] = t.UnixMilli()
		}
	}
	return rec
}

// persistLocked hands a snapshot to the sink while the lock is held, so
// snapshots of one channel reach the sink in mutation order.
func (c *Channel) persistLocked() {
	if c.sink == nil || c.detached {
		return
	}
	c.sink.SaveChannel(c.snapshotLocked())
}

// detach marks the channel as removed from its registry. Later mutations fail
// with ErrNotFound and nothing more is persisted.
func (c *Channel) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
}

func idStrings(ids []member.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
