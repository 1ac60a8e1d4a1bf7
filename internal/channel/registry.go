package channel

import (
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanserv/internal/member"
	"github.com/vovakirdan/chanserv/internal/store"
)

var (
	namePattern   = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
)

// Options controls channel lifecycle policy. It is passed at construction
// and replaced with Registry.Reload.
type Options struct {
	// ZeroMemberRemove deletes a channel once its last member leaves.
	ZeroMemberRemove bool
	// CreateOnJoin lets a join on an unknown name create the channel.
	CreateOnJoin bool
	// MaxNameLength bounds channel names.
	MaxNameLength int
}

// DefaultOptions returns the lifecycle policy used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		ZeroMemberRemove: false,
		CreateOnJoin:     true,
		MaxNameLength:    20,
	}
}

// RegistrySink persists channels and per-member default channels.
type RegistrySink interface {
	Sink
	SaveDefault(memberID, channel string)
}

// Registry owns every Channel by case-insensitive name.
// Lock order is registry, then channel.
type Registry struct {
	sink RegistrySink
	now  func() time.Time
	log  *zerolog.Logger

	mu       sync.RWMutex
	opts     Options
	channels map[string]*Channel
	defaults map[member.ID]string
}

// NewRegistry builds an empty registry. sink may be nil (no persistence);
// now may be nil (wall clock).
func NewRegistry(opts Options, sink RegistrySink, logger *zerolog.Logger, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		sink:     sink,
		now:      now,
		log:      logger,
		opts:     opts,
		channels: make(map[string]*Channel),
		defaults: make(map[member.ID]string),
	}
}

func key(name string) string { return strings.ToLower(name) }

// Reload swaps the lifecycle policy. Channels that are already empty are not
// swept retroactively; the policy applies to the next removal.
func (r *Registry) Reload(opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = opts
	r.log.Info().
		Bool("zero_member_remove", opts.ZeroMemberRemove).
		Bool("create_on_join", opts.CreateOnJoin).
		Msg("channel options reloaded")
}

// Options returns the current lifecycle policy.
func (r *Registry) Options() Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opts
}

// ValidateName checks the characters and length of a channel name. All-digit
// names are rejected so that a numeric command argument is always a duration.
func (r *Registry) ValidateName(name string) error {
	r.mu.RLock()
	maxLen := r.opts.MaxNameLength
	r.mu.RUnlock()
	return validateName(name, maxLen)
}

func validateName(name string, maxLen int) error {
	if name == "" || !namePattern.MatchString(name) || digitsPattern.MatchString(name) {
		return ErrInvalidName
	}
	if maxLen > 0 && len(name) > maxLen {
		return ErrInvalidName
	}
	return nil
}

// IsDuration reports whether a command token should be read as minutes.
func IsDuration(token string) bool {
	return digitsPattern.MatchString(token)
}

// Get looks a channel up case-insensitively.
func (r *Registry) Get(name string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[key(name)]
	return ch, ok
}

// List returns all channels ordered by name.
func (r *Registry) List() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	slices.SortFunc(out, func(a, b *Channel) int {
		return strings.Compare(key(a.name), key(b.name))
	})
	return out
}

// ChannelsOf returns the channels id is a member of, ordered by name.
func (r *Registry) ChannelsOf(id member.ID) []*Channel {
	var out []*Channel
	for _, ch := range r.List() {
		if ch.HasMember(id) {
			out = append(out, ch)
		}
	}
	return out
}

// Create makes a new channel whose only member and moderator is requester.
func (r *Registry) Create(name string, requester member.ID) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[key(name)]; exists {
		return nil, ErrAlreadyExists
	}
	ch, err := r.createLocked(name, requester)
	if err != nil {
		return nil, err
	}
	r.setDefaultLocked(requester, ch.name)
	return ch, nil
}

// GetOrCreate returns the named channel, creating it for requester when it
// does not exist yet.
func (r *Registry) GetOrCreate(name string, requester member.ID) (ch *Channel, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[key(name)]; ok {
		return ch, false, nil
	}
	ch, err = r.createLocked(name, requester)
	if err != nil {
		return nil, false, err
	}
	r.setDefaultLocked(requester, ch.name)
	return ch, true, nil
}

func (r *Registry) createLocked(name string, requester member.ID) (*Channel, error) {
	if err := validateName(name, r.opts.MaxNameLength); err != nil {
		return nil, err
	}
	if _, exists := r.channels[key(name)]; exists {
		return nil, ErrAlreadyExists
	}

	ch := New(name, r.sink, r.now)
	ch.mu.Lock()
	ch.members[requester] = struct{}{}
	ch.moderators[requester] = struct{}{}
	ch.persistLocked()
	ch.mu.Unlock()

	r.channels[key(name)] = ch
	r.log.Info().Str("channel", name).Str("member", requester.String()).Msg("channel created")
	return ch, nil
}

// Join adds id to the named channel, creating it when the policy allows.
// The joined channel becomes the member's default.
func (r *Registry) Join(name string, id member.ID) (ch *Channel, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[key(name)]
	if !ok {
		if !r.opts.CreateOnJoin {
			return nil, false, ErrNotFound
		}
		ch, err = r.createLocked(name, id)
		if err != nil {
			return nil, false, err
		}
		created = true
	} else if err := ch.AddMember(id); err != nil {
		return ch, false, err
	}

	r.setDefaultLocked(id, ch.name)
	return ch, created, nil
}

// Leave removes id from ch and applies the zero-member policy. It reports
// whether the channel was deleted as a result.
func (r *Registry) Leave(ch *Channel, id member.ID) (channelRemoved bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ownsLocked(ch) {
		return false, ErrNotFound
	}
	remaining, err := ch.RemoveMember(id)
	if err != nil {
		return false, err
	}
	return r.afterRemovalLocked(ch, id, remaining), nil
}

// Kick is Leave initiated by a moderator.
func (r *Registry) Kick(ch *Channel, id member.ID) (channelRemoved bool, err error) {
	return r.Leave(ch, id)
}

// Ban bans id from ch; when that removes the last member the zero-member
// policy applies.
func (r *Registry) Ban(ch *Channel, id member.ID) (wasMember, channelRemoved bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ownsLocked(ch) {
		return false, false, ErrNotFound
	}
	wasMember, err = ch.Ban(id)
	if err != nil {
		return false, false, err
	}
	if wasMember {
		channelRemoved = r.afterRemovalLocked(ch, id, ch.MemberCount())
	}
	return wasMember, channelRemoved, nil
}

// KickMute mutes id in ch and removes them. minutes <= 0 with timed=false
// means a permanent mute.
func (r *Registry) KickMute(ch *Channel, id member.ID, minutes int, timed bool) (channelRemoved bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ownsLocked(ch) {
		return false, ErrNotFound
	}
	var remaining int
	if timed {
		remaining, err = ch.KickMuteFor(id, minutes)
	} else {
		remaining, err = ch.KickMute(id)
	}
	if err != nil {
		return false, err
	}
	return r.afterRemovalLocked(ch, id, remaining), nil
}

// Remove deletes a channel by name.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[key(name)]
	if !ok {
		return ErrNotFound
	}
	r.deleteLocked(ch)
	return nil
}

// Default returns the member's default channel, if it still exists.
func (r *Registry) Default(id member.ID) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.defaults[id]
	if !ok {
		return nil, false
	}
	ch, ok := r.channels[key(name)]
	return ch, ok
}

// SetDefault makes name the default channel of id, who must be a member.
func (r *Registry) SetDefault(id member.ID, name string) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[key(name)]
	if !ok {
		return nil, ErrNotFound
	}
	if !ch.HasMember(id) {
		return nil, ErrNotMember
	}
	r.setDefaultLocked(id, ch.name)
	return ch, nil
}

// Expired names a mute evicted by SweepExpired.
type Expired struct {
	Channel string
	ID      member.ID
}

// SweepExpired evicts expired timed mutes in every channel.
func (r *Registry) SweepExpired() []Expired {
	var out []Expired
	for _, ch := range r.List() {
		for _, id := range ch.ExpireMutes() {
			out = append(out, Expired{Channel: ch.name, ID: id})
		}
	}
	return out
}

// Load restores channels and defaults from storage. Records are normalized
// so the channel invariants hold; nothing is written back.
func (r *Registry) Load(records []store.ChannelRecord, defaults map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		ch := r.fromRecord(rec)
		if ch == nil {
			continue
		}
		if _, dup := r.channels[key(ch.name)]; dup {
			r.log.Warn().Str("channel", ch.name).Msg("duplicate channel record, keeping the last one")
		}
		r.channels[key(ch.name)] = ch
	}

	for rawID, name := range defaults {
		id, err := member.Parse(rawID)
		if err != nil {
			r.log.Warn().Err(err).Msg("skipping default channel entry")
			continue
		}
		if ch, ok := r.channels[key(name)]; ok {
			r.defaults[id] = ch.name
		}
	}

	r.log.Info().Int("channels", len(r.channels)).Int("defaults", len(r.defaults)).Msg("channels loaded")
}

func (r *Registry) fromRecord(rec store.ChannelRecord) *Channel {
	if rec.Name == "" {
		r.log.Warn().Msg("skipping channel record without a name")
		return nil
	}

	ch := New(rec.Name, r.sink, r.now)
	parse := func(field string, raw []string, into set) {
		for _, s := range raw {
			id, err := member.Parse(s)
			if err != nil {
				r.log.Warn().Err(err).Str("channel", rec.Name).Str("field", field).Msg("skipping invalid member id")
				continue
			}
			into[id] = struct{}{}
		}
	}
	parse("members", rec.Members, ch.members)
	parse("moderators", rec.Moderators, ch.moderators)
	parse("muted", rec.Muted, ch.muted)
	parse("banned", rec.Banned, ch.banned)

	for id := range ch.banned {
		delete(ch.members, id)
	}
	for raw, ms := range rec.MuteExpires {
		id, err := member.Parse(raw)
		if err != nil || !ch.muted.has(id) {
			continue
		}
		ch.muteExpires[id] = time.UnixMilli(ms)
	}
	return ch
}

func (r *Registry) ownsLocked(ch *Channel) bool {
	return ch != nil && r.channels[key(ch.name)] == ch
}

func (r *Registry) afterRemovalLocked(ch *Channel, id member.ID, remaining int) bool {
	if name, ok := r.defaults[id]; ok && key(name) == key(ch.name) {
		r.clearDefaultLocked(id)
	}
	if remaining == 0 && r.opts.ZeroMemberRemove {
		r.deleteLocked(ch)
		r.log.Info().Str("channel", ch.name).Msg("empty channel removed")
		return true
	}
	return false
}

func (r *Registry) deleteLocked(ch *Channel) {
	delete(r.channels, key(ch.name))
	ch.detach()
	if r.sink != nil {
		r.sink.DeleteChannel(ch.name)
	}
	for id, name := range r.defaults {
		if key(name) == key(ch.name) {
			r.clearDefaultLocked(id)
		}
	}
}

func (r *Registry) setDefaultLocked(id member.ID, name string) {
	if r.defaults[id] == name {
		return
	}
	r.defaults[id] = name
	if r.sink != nil {
		r.sink.SaveDefault(string(id), name)
	}
}

func (r *Registry) clearDefaultLocked(id member.ID) {
	delete(r.defaults, id)
	if r.sink != nil {
		r.sink.SaveDefault(string(id), "")
	}
}
