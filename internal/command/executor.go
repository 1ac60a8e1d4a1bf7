// Package command turns chat command lines into channel operations and the
// messages that report them.
package command

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanserv/internal/channel"
	"github.com/vovakirdan/chanserv/internal/core"
	"github.com/vovakirdan/chanserv/internal/i18n"
	"github.com/vovakirdan/chanserv/internal/member"
)

// NG word actions.
const (
	ActionMask = "mask"
	ActionKick = "kick"
	ActionBan  = "ban"
)

// Sender is the participant issuing a command.
type Sender struct {
	ID   member.ID
	Name string
}

// Resolver maps a typed name to an identity and an identity to a display name.
type Resolver interface {
	Resolve(ctx context.Context, name string) (member.ID, error)
	DisplayName(ctx context.Context, id member.ID) string
}

// Delivery sends events to members that are online.
type Delivery interface {
	Send(to member.ID, ev *core.Event)
	Broadcast(to []member.ID, ev *core.Event)
	// BroadcastAll delivers to every member that is online.
	BroadcastAll(ev *core.Event)
}

// Config is the reloadable part of command handling.
type Config struct {
	// Admins hold the global override: usernames (case-insensitive) or member ids.
	Admins []string
	// NGWords are regular expressions matched case-insensitively against chat.
	NGWords []string
	// NGWordAction is one of mask, kick or ban.
	NGWordAction string

	// GlobalChannel receives global chat; empty sends it to everyone online.
	GlobalChannel string
	// GlobalMarker is the prefix that sends a line to global chat.
	GlobalMarker string
	// NoJoinAsGlobal routes chat from members without a channel to global chat
	// instead of rejecting it.
	NoJoinAsGlobal bool
	ShowListOnJoin bool
	LogChat        bool
}

// chatSettings is the reloadable routing part of Config.
type chatSettings struct {
	globalChannel  string
	globalMarker   string
	noJoinAsGlobal bool
	showListOnJoin bool
	logChat        bool
}

// Command is one entry of the command table.
type Command struct {
	handler   func(ctx context.Context, e *Executor, s Sender, args []string)
	minParams int
	maxParams int // -1 for unbounded
	usage     string
}

// Executor parses and runs commands. Safe for concurrent use.
type Executor struct {
	registry *channel.Registry
	resolver Resolver
	catalog  *i18n.Catalog
	delivery Delivery
	log      *zerolog.Logger
	cmds     map[string]Command

	mu       sync.RWMutex
	admins   map[string]struct{}
	ngWords  []*regexp.Regexp
	ngAction string
	chat     chatSettings
}

// NewExecutor builds an executor over the given collaborators.
func NewExecutor(
	registry *channel.Registry,
	resolver Resolver,
	catalog *i18n.Catalog,
	delivery Delivery,
	cfg Config,
	logger *zerolog.Logger,
) (*Executor, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	e := &Executor{
		registry: registry,
		resolver: resolver,
		catalog:  catalog,
		delivery: delivery,
		log:      logger,
	}
	e.cmds = e.commandTable()
	if err := e.Reload(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload swaps admins, chat filtering and chat routing. On error the previous
// configuration stays in effect.
func (e *Executor) Reload(cfg Config) error {
	action := strings.ToLower(strings.TrimSpace(cfg.NGWordAction))
	switch action {
	case "":
		action = ActionMask
	case ActionMask, ActionKick, ActionBan:
	default:
		return fmt.Errorf("unknown ng word action %q", cfg.NGWordAction)
	}

	words := make([]*regexp.Regexp, 0, len(cfg.NGWords))
	for _, w := range cfg.NGWords {
		re, err := regexp.Compile("(?i)" + w)
		if err != nil {
			return fmt.Errorf("compile ng word %q: %w", w, err)
		}
		words = append(words, re)
	}

	global := strings.TrimSpace(cfg.GlobalChannel)
	if global != "" {
		if err := e.registry.ValidateName(global); err != nil {
			return fmt.Errorf("global channel %q: %w", global, err)
		}
	}

	admins := make(map[string]struct{}, len(cfg.Admins))
	for _, a := range cfg.Admins {
		admins[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}

	e.mu.Lock()
	e.admins = admins
	e.ngWords = words
	e.ngAction = action
	e.chat = chatSettings{
		globalChannel:  global,
		globalMarker:   cfg.GlobalMarker,
		noJoinAsGlobal: cfg.NoJoinAsGlobal,
		showListOnJoin: cfg.ShowListOnJoin,
		logChat:        cfg.LogChat,
	}
	e.mu.Unlock()
	return nil
}

func (e *Executor) chatConfig() chatSettings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.chat
}

// IsAdmin reports whether the sender holds the global override.
func (e *Executor) IsAdmin(s Sender) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.admins[strings.ToLower(s.Name)]; ok {
		return true
	}
	_, ok := e.admins[strings.ToLower(s.ID.String())]
	return ok
}

func (e *Executor) canModerate(s Sender, ch *channel.Channel) bool {
	return ch.IsModerator(s.ID) || e.IsAdmin(s)
}

// Execute runs one command line for the sender. Every failure is reported to
// the sender as a message; the result is false only for a blank line.
func (e *Executor) Execute(ctx context.Context, s Sender, line string) bool {
	args, err := ParseLine(line)
	if err != nil {
		e.fail(s, "", e.catalog.Error("errmsg.usage", line))
		return true
	}
	if len(args) == 0 {
		return false
	}
	e.Run(ctx, s, args[0], args[1:]...)
	return true
}

// Run executes an already tokenized command.
func (e *Executor) Run(ctx context.Context, s Sender, command string, params ...string) {
	name := strings.ToLower(command)
	cmd, ok := e.cmds[name]
	if !ok {
		e.fail(s, "", e.catalog.Error("errmsg.command", command))
		return
	}

	if len(params) < cmd.minParams || (cmd.maxParams >= 0 && len(params) > cmd.maxParams) {
		e.fail(s, "", e.catalog.Error("errmsg.usage", cmd.usage))
		return
	}

	e.log.Debug().Str("member", s.ID.String()).Str("command", name).Strs("args", params).Msg("command")
	cmd.handler(ctx, e, s, params)
}

// Commands lists the command names in order.
func (e *Executor) Commands() []string {
	names := make([]string, 0, len(e.cmds))
	for name := range e.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Executor) commandTable() map[string]Command {
	cmds := map[string]Command{
		"join":    {handler: join, minParams: 1, maxParams: 1, usage: "join <channel>"},
		"leave":   {handler: leave, minParams: 0, maxParams: 1, usage: "leave [channel]"},
		"create":  {handler: create, minParams: 1, maxParams: 1, usage: "create <channel>"},
		"remove":  {handler: remove, minParams: 1, maxParams: 1, usage: "remove <channel>"},
		"list":    {handler: list, minParams: 0, maxParams: 0, usage: "list"},
		"info":    {handler: info, minParams: 0, maxParams: 1, usage: "info [channel]"},
		"default": {handler: setDefault, minParams: 1, maxParams: 1, usage: "default <channel>"},
		"help":    {handler: help, minParams: 0, maxParams: -1, usage: "help"},
	}
	for _, spec := range moderationSpecs {
		maxParams := 2
		if spec.AllowDuration {
			maxParams = 3
		}
		cmds[spec.Name] = Command{
			handler: func(ctx context.Context, e *Executor, s Sender, args []string) {
				e.moderate(ctx, spec, s, args)
			},
			minParams: 1,
			maxParams: maxParams,
			usage:     spec.Usage,
		}
	}
	return cmds
}

// channelFor picks the explicit channel or the sender's default.
func (e *Executor) channelFor(s Sender, name string) (*channel.Channel, error) {
	if name != "" {
		ch, ok := e.registry.Get(name)
		if !ok {
			return nil, channel.ErrNotFound
		}
		return ch, nil
	}
	ch, ok := e.registry.Default(s.ID)
	if !ok {
		return nil, channel.ErrNoChannel
	}
	return ch, nil
}

func (e *Executor) reply(s Sender, channelName, text string) {
	e.delivery.Send(s.ID, core.Notice(channelName, text))
}

func (e *Executor) fail(s Sender, channelName, text string) {
	e.delivery.Send(s.ID, core.Failure(channelName, text))
}

// broadcast sends a channel notice to every member not listed in except.
func (e *Executor) broadcast(ch *channel.Channel, text string, except ...member.ID) {
	members := ch.Members()
	to := make([]member.ID, 0, len(members))
	for _, id := range members {
		if !slices.Contains(except, id) {
			to = append(to, id)
		}
	}
	if len(to) > 0 {
		e.delivery.Broadcast(to, core.Notice(ch.Name(), text))
	}
}
