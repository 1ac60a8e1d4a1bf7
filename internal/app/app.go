package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/chanserv/internal/auth"
	"github.com/vovakirdan/chanserv/internal/channel"
	"github.com/vovakirdan/chanserv/internal/command"
	"github.com/vovakirdan/chanserv/internal/config"
	"github.com/vovakirdan/chanserv/internal/core"
	"github.com/vovakirdan/chanserv/internal/i18n"
	"github.com/vovakirdan/chanserv/internal/log"
	"github.com/vovakirdan/chanserv/internal/member"
	"github.com/vovakirdan/chanserv/internal/store"
	"github.com/vovakirdan/chanserv/internal/store/sqlite"
	"github.com/vovakirdan/chanserv/internal/store/yamlfile"
	transporthttp "github.com/vovakirdan/chanserv/internal/transport/http"
)

// App wires together storage, channel state, commands and transport.
type App struct {
	server   *stdhttp.Server
	hub      *core.Hub
	registry *channel.Registry
	exec     *command.Executor
	catalog  *i18n.Catalog
	writer   *channel.Writer
	users    store.Store
	channels store.ChannelStore
	log      *zerolog.Logger

	mu    sync.Mutex
	cfg   config.Config
	sweep chan time.Duration
}

// New constructs the application with provided configuration and restores
// persisted channel state.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	a := &App{
		users: st,
		log:   logger,
		cfg:   *cfg,
		sweep: make(chan time.Duration, 1),
	}
	if err := a.init(ctx, cfg); err != nil {
		a.cleanup()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, cfg *config.Config) error {
	switch cfg.Storage.Channels {
	case config.StorageYAML:
		ys, err := yamlfile.New(cfg.Storage.ChannelsDir)
		if err != nil {
			return fmt.Errorf("init channel files: %w", err)
		}
		a.channels = ys
		a.log.Info().Str("dir", cfg.Storage.ChannelsDir).Msg("channels stored as yaml files")
	default:
		a.channels = a.users
	}

	catalog, err := i18n.Load(cfg.MessagesFile)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	a.catalog = catalog

	component := func(name string) *zerolog.Logger {
		l := a.log.With().Str("component", name).Logger()
		return &l
	}

	a.writer = channel.NewWriter(a.channels, component("writer"))
	a.registry = channel.NewRegistry(channelOptions(cfg), a.writer, component("registry"), nil)

	records, err := a.channels.LoadChannels(ctx)
	if err != nil {
		return fmt.Errorf("load channels: %w", err)
	}
	defaults, err := a.channels.LoadDefaults(ctx)
	if err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}
	a.registry.Load(records, defaults)
	a.log.Info().Int("channels", len(records)).Int("defaults", len(defaults)).Msg("channel state restored")

	resolver, err := member.NewResolver(a.users, 0)
	if err != nil {
		return err
	}

	a.hub = core.NewHub(component("hub"))
	a.exec, err = command.NewExecutor(a.registry, resolver, catalog, a.hub, commandConfig(cfg), component("command"))
	if err != nil {
		return fmt.Errorf("init commands: %w", err)
	}

	authService := auth.NewService(a.users, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	})

	a.server = transporthttp.NewServer(transporthttp.Deps{
		Hub:      a.hub,
		Executor: a.exec,
		Registry: a.registry,
		Resolver: resolver,
		Auth:     authService,
	}, cfg, component("http"))
	return nil
}

func channelOptions(cfg *config.Config) channel.Options {
	return channel.Options{
		ZeroMemberRemove: cfg.Channels.ZeroMemberRemove,
		CreateOnJoin:     cfg.Channels.CreateOnJoin,
		MaxNameLength:    cfg.Channels.MaxNameLength,
	}
}

func commandConfig(cfg *config.Config) command.Config {
	return command.Config{
		Admins:       cfg.Moderation.Admins,
		NGWords:      cfg.Chat.NGWords,
		NGWordAction: cfg.Chat.NGWordAction,

		GlobalChannel:  cfg.Channels.GlobalChannel,
		GlobalMarker:   cfg.Chat.GlobalMarker,
		NoJoinAsGlobal: cfg.Chat.NoJoinAsGlobal,
		ShowListOnJoin: cfg.Channels.ShowListOnJoin,
		LogChat:        cfg.Chat.LogChat,
	}
}

// Run starts the HTTP server, the persistence writer and the mute sweeper,
// and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// The writer outlives the server so that the last mutations are stored.
	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		_ = a.writer.Run(writerCtx)
	}()

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		a.runSweeper(gctx, a.config().Moderation.SweepInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config().ShutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	stopWriter()
	<-writerDone
	if failures := a.writer.Failures(); failures > 0 {
		a.log.Warn().Int64("failures", failures).Msg("some channel writes were dropped")
	}

	a.cleanup()
	return err
}

// runSweeper evicts expired mutes on a ticker and notifies the unmuted
// members. An interval of zero leaves expiry to lazy checks.
func (a *App) runSweeper(ctx context.Context, interval time.Duration) {
	var tick <-chan time.Time
	var ticker *time.Ticker
	reset := func(d time.Duration) {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
		if d > 0 {
			ticker = time.NewTicker(d)
			tick = ticker.C
		}
	}
	reset(interval)
	defer reset(0)

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-a.sweep:
			reset(d)
		case <-tick:
			a.sweepOnce(ctx)
		}
	}
}

func (a *App) sweepOnce(ctx context.Context) {
	expired := a.registry.SweepExpired()
	if len(expired) == 0 {
		return
	}
	a.log.Debug().Int("count", len(expired)).Msg("expired mutes swept")
	a.exec.NotifyExpired(ctx, expired)
}

// ApplyConfig swaps the reloadable settings. Listener, storage and token
// settings need a restart and only produce a warning.
func (a *App) ApplyConfig(cfg config.Config) {
	a.mu.Lock()
	prev := a.cfg
	a.cfg = cfg
	a.mu.Unlock()

	if prev.Addr != cfg.Addr || prev.DatabasePath != cfg.DatabasePath || prev.Storage != cfg.Storage ||
		prev.JWTSecret != cfg.JWTSecret || prev.TokenTTL != cfg.TokenTTL {
		a.log.Warn().Msg("listener, storage and token settings change only on restart")
	}

	log.SetLevel(cfg.LogLevel)
	a.registry.Reload(channelOptions(&cfg))
	if err := a.exec.Reload(commandConfig(&cfg)); err != nil {
		a.log.Error().Err(err).Msg("keeping previous moderation and chat settings")
	}
	if err := a.catalog.Reload(cfg.MessagesFile); err != nil {
		a.log.Error().Err(err).Msg("keeping previous messages")
	}
	if prev.Moderation.SweepInterval != cfg.Moderation.SweepInterval {
		a.notifySweeper(cfg.Moderation.SweepInterval)
	}
}

// notifySweeper replaces any pending interval with d. It never blocks, so a
// reload after the sweeper has stopped is dropped.
func (a *App) notifySweeper(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-a.sweep:
	default:
	}
	select {
	case a.sweep <- d:
	default:
	}
}

func (a *App) config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.channels != nil && a.channels != store.ChannelStore(a.users) {
		if err := a.channels.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close channel store")
		}
	}
	if a.users != nil {
		if err := a.users.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
