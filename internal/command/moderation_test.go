package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chanserv/internal/channel"
	"github.com/vovakirdan/chanserv/internal/core"
	"github.com/vovakirdan/chanserv/internal/member"
)

func TestNonModeratorCannotMute(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{})
	alice, bob := env.sender("alice"), env.sender("bob")
	ch := env.general(t, alice, bob)

	env.run(bob, "mute alice")

	ev := env.out.last(t, bob.ID)
	assert.Equal(t, core.EventError, ev.Kind)
	assert.Equal(t, env.catalog.Error("errmsg.not_moderator", "", "general"), ev.Text)
	assert.False(t, ch.IsMuted(alice.ID))
	assert.ElementsMatch(t, []member.ID{alice.ID, bob.ID}, ch.Members())
}

func TestTimedMuteThenAlreadyMuted(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{})
	alice, bob := env.sender("alice"), env.sender("bob")
	ch := env.general(t, alice, bob)
	start := env.clock.Now()

	env.run(alice, "mute bob 5")

	require.True(t, ch.IsMuted(bob.ID))
	expiry, ok := ch.MuteExpiry(bob.ID)
	require.True(t, ok)
	assert.Equal(t, start.Add(300*time.Second), expiry)

	assert.Equal(t, env.catalog.Info("cmdmsg.mute_expire", "bob", "general", 5, "alice"), env.out.last(t, alice.ID).Text)
	assert.Equal(t, env.catalog.Info("cmdmsg.muted_expire", "bob", "general", 5, "alice"), env.out.last(t, bob.ID).Text)

	env.run(alice, "mute bob 5")
	ev := env.out.last(t, alice.ID)
	assert.Equal(t, core.EventError, ev.Kind)
	assert.Equal(t, env.catalog.Error("errmsg.already_muted", "bob", "general"), ev.Text)
}

func TestMuteBroadcastReachesOtherMembers(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{})
	alice, bob, carol := env.sender("alice"), env.sender("bob"), env.sender("carol")
	env.general(t, alice, bob, carol)

	env.run(alice, "mute bob")

	evs := env.out.of(carol.ID)
	require.Len(t, evs, 1)
	assert.Equal(t, env.catalog.Format("channel.mute", "bob", "general", 0, "alice"), evs[0].Text)
	assert.Len(t, env.out.of(alice.ID), 1, "sender gets only the confirmation")
	assert.Len(t, env.out.of(bob.ID), 1, "target gets only the direct notice")
}

func TestMuteCheckOrder(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantKey string
		target  string
	}{
		{name: "non member target", line: "mute dave 0", wantKey: "errmsg.not_member_other", target: "dave"},
		{name: "zero minutes", line: "mute bob 0", wantKey: "errmsg.invalid_duration", target: "bob"},
		{name: "over limit", line: "mute bob 43201", wantKey: "errmsg.invalid_duration", target: "bob"},
		{name: "overflow", line: "mute bob 99999999999999999999", wantKey: "errmsg.invalid_duration", target: "bob"},
		{name: "unknown channel", line: "mute bob nowhere", wantKey: "errmsg.not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, channel.DefaultOptions(), Config{})
			alice, bob := env.sender("alice"), env.sender("bob")
			ch := env.general(t, alice, bob)

			env.run(alice, tt.line)

			ev := env.out.last(t, alice.ID)
			assert.Equal(t, core.EventError, ev.Kind)
			chName := "general"
			if tt.wantKey == "errmsg.not_found" {
				chName = "nowhere"
			}
			assert.Equal(t, env.catalog.Error(tt.wantKey, tt.target, chName), ev.Text)
			assert.False(t, ch.IsMuted(bob.ID))
		})
	}
}

func TestMuteDurationBoundariesThroughCommand(t *testing.T) {
	for _, minutes := range []string{"1", "43200"} {
		t.Run(minutes, func(t *testing.T) {
			env := newEnv(t, channel.DefaultOptions(), Config{})
			alice, bob := env.sender("alice"), env.sender("bob")
			ch := env.general(t, alice, bob)

			env.run(alice, "mute bob "+minutes)
			assert.True(t, ch.IsMuted(bob.ID))
		})
	}
}

func TestMuteExplicitChannel(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{})
	alice, bob := env.sender("alice"), env.sender("bob")
	env.general(t, alice, bob)
	other, err := env.registry.Create("other", alice.ID)
	require.NoError(t, err)
	require.NoError(t, other.AddMember(bob.ID))

	env.run(alice, "mute bob General")
	general, _ := env.registry.Get("general")
	assert.True(t, general.IsMuted(bob.ID))
	_, timed := general.MuteExpiry(bob.ID)
	assert.False(t, timed)

	env.run(alice, "mute bob 10 other")
	assert.True(t, other.IsMuted(bob.ID))
	_, timed = other.MuteExpiry(bob.ID)
	assert.True(t, timed)
}

func TestMuteWithoutChannel(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{})
	alice := env.sender("alice")

	env.run(alice, "mute bob")

	assert.Equal(t, env.catalog.Error("errmsg.no_channel", "", ""), env.out.last(t, alice.ID).Text)
}

func TestMuteOfflineTarget(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{})
	alice := env.sender("alice")
	ch := env.general(t, alice)
	// Dave never connected; his identity still resolves.
	require.NoError(t, ch.AddMember(member.OfflineID("Dave")))

	env.run(alice, "mute dave")

	assert.True(t, ch.IsMuted(member.OfflineID("dave")))
}

func TestAdminOverride(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{Admins: []string{"Root"}})
	alice, bob, root := env.sender("alice"), env.sender("bob"), env.sender("root")
	ch := env.general(t, alice, bob)

	env.run(root, "ban bob general")

	assert.True(t, ch.IsBanned(bob.ID))
	assert.False(t, ch.HasMember(bob.ID))
	assert.Equal(t, core.EventNotice, env.out.last(t, root.ID).Kind)

	require.NoError(t, env.exec.Reload(Config{}))
	env.run(root, "unban bob general")
	assert.True(t, ch.IsBanned(bob.ID))
}

func TestUnmuteTwice(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{})
	alice, bob := env.sender("alice"), env.sender("bob")
	ch := env.general(t, alice, bob)
	require.NoError(t, ch.Mute(bob.ID))

	env.run(alice, "unmute bob")
	assert.False(t, ch.IsMuted(bob.ID))
	assert.Equal(t, core.EventNotice, env.out.last(t, alice.ID).Kind)

	env.run(alice, "unmute bob")
	assert.Equal(t, env.catalog.Error("errmsg.not_muted", "bob", "general"), env.out.last(t, alice.ID).Text)
}

func TestUnmuteDoesNotTakeDuration(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{})
	alice, bob := env.sender("alice"), env.sender("bob")
	env.general(t, alice, bob)

	env.run(alice, "unmute bob 5")
	assert.Equal(t, env.catalog.Error("errmsg.not_found", "", "5"), env.out.last(t, alice.ID).Text)
}

func TestKickAndKickMute(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{})
	alice, bob, carol := env.sender("alice"), env.sender("bob"), env.sender("carol")
	ch := env.general(t, alice, bob, carol)

	env.run(alice, "kick bob")
	assert.False(t, ch.HasMember(bob.ID))
	assert.Equal(t, env.catalog.Info("cmdmsg.kicked", "bob", "general", 0, "alice"), env.out.last(t, bob.ID).Text)

	env.run(alice, "kick bob")
	assert.Equal(t, env.catalog.Error("errmsg.not_member_other", "bob", "general"), env.out.last(t, alice.ID).Text)

	env.run(alice, "kickmute carol 15")
	assert.False(t, ch.HasMember(carol.ID))
	assert.True(t, ch.IsMuted(carol.ID))
	assert.Equal(t, env.catalog.Info("cmdmsg.kickmuted_expire", "carol", "general", 15, "alice"), env.out.last(t, carol.ID).Text)
}

func TestKickLastMemberRemovesChannel(t *testing.T) {
	opts := channel.DefaultOptions()
	opts.ZeroMemberRemove = true
	env := newEnv(t, opts, Config{Admins: []string{"root"}})
	alice, root := env.sender("alice"), env.sender("root")
	env.general(t, alice)

	env.run(root, "kick alice general")

	_, ok := env.registry.Get("general")
	assert.False(t, ok)
}

func TestModAndUnmod(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{})
	alice, bob, _ := env.sender("alice"), env.sender("bob"), env.sender("carol")
	ch := env.general(t, alice, bob)

	env.run(alice, "mod carol")
	assert.Equal(t, env.catalog.Error("errmsg.not_member_other", "carol", "general"), env.out.last(t, alice.ID).Text)

	env.run(alice, "mod bob")
	require.True(t, ch.IsModerator(bob.ID))

	env.run(bob, "mute alice")
	assert.True(t, ch.IsMuted(alice.ID))

	env.run(alice, "unmod bob")
	assert.False(t, ch.IsModerator(bob.ID))
	env.run(alice, "unmod bob")
	assert.Equal(t, env.catalog.Error("errmsg.not_moderator_target", "bob", "general"), env.out.last(t, alice.ID).Text)
}

func TestModeratorSurvivesLeave(t *testing.T) {
	env := newEnv(t, channel.DefaultOptions(), Config{})
	alice, bob := env.sender("alice"), env.sender("bob")
	ch := env.general(t, alice, bob)
	require.NoError(t, ch.AddModerator(bob.ID))

	env.run(bob, "leave")
	assert.True(t, ch.IsModerator(bob.ID))

	env.run(bob, "mute alice general")
	assert.True(t, ch.IsMuted(alice.ID))
}

func TestParseModerationArgs(t *testing.T) {
	mute := moderationSpecs[0]
	kick := moderationSpecs[4]
	require.Equal(t, "mute", mute.Name)
	require.Equal(t, "kick", kick.Name)

	tests := []struct {
		name string
		spec ModerationSpec
		args []string
		want moderationArgs
		ok   bool
	}{
		{name: "target only", spec: mute, args: []string{"bob"}, want: moderationArgs{target: "bob"}, ok: true},
		{name: "duration", spec: mute, args: []string{"bob", "5"}, want: moderationArgs{target: "bob", minutes: 5, timed: true}, ok: true},
		{name: "channel", spec: mute, args: []string{"bob", "dev"}, want: moderationArgs{target: "bob", channel: "dev"}, ok: true},
		{name: "duration and channel", spec: mute, args: []string{"bob", "5", "dev"}, want: moderationArgs{target: "bob", channel: "dev", minutes: 5, timed: true}, ok: true},
		{name: "two channels", spec: mute, args: []string{"bob", "dev", "ops"}, want: moderationArgs{target: "bob", channel: "dev"}, ok: false},
		{name: "digits without duration support", spec: kick, args: []string{"bob", "5"}, want: moderationArgs{target: "bob", channel: "5"}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseModerationArgs(tt.spec, tt.args)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
