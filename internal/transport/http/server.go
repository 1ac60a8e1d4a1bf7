package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanserv/internal/auth"
	"github.com/vovakirdan/chanserv/internal/channel"
	"github.com/vovakirdan/chanserv/internal/command"
	"github.com/vovakirdan/chanserv/internal/config"
	"github.com/vovakirdan/chanserv/internal/core"
	"github.com/vovakirdan/chanserv/internal/member"
)

// Deps are the services the HTTP layer talks to.
type Deps struct {
	Hub      *core.Hub
	Executor *command.Executor
	Registry *channel.Registry
	Resolver *member.Resolver
	Auth     *auth.Service
}

// NewServer builds an HTTP server with API and WebSocket routes.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(deps Deps, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))

	r.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(deps.Auth, deps.Resolver, logger)
	channelHandlers := NewChannelHandlers(deps.Registry, deps.Resolver, logger)

	api := r.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)
	api.POST("/guest", apiHandlers.GuestLogin)

	authed := api.Group("")
	authed.Use(AuthMiddleware(deps.Auth, logger))
	authed.GET("/channels", channelHandlers.ListChannels)
	authed.GET("/channels/:name", channelHandlers.GetChannel)

	ws := NewWSHandler(deps.Hub, deps.Executor, deps.Resolver, deps.Auth, cfg.Chat.RateLimitPerMinute, logger)
	r.GET("/ws", gin.WrapH(ws))

	return r
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
