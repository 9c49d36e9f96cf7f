package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"usersapp/internal/config"
	"usersapp/internal/middleware"
	"usersapp/internal/ratelimit"
	"usersapp/internal/service"
)

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the process-wide resources the handlers need. LoginLimiter and
// Cache may be nil.
type Deps struct {
	Log          zerolog.Logger
	Config       *config.AppConfig
	Users        *service.UserService
	Tokens       middleware.TokenVerifier
	LoginLimiter ratelimit.Limiter
	Database     Pinger
	Cache        Pinger
}

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	users        *service.UserService
	tokens       middleware.TokenVerifier
	loginLimiter ratelimit.Limiter
	db           Pinger
	cache        Pinger
}

func NewHandlerSet(deps Deps) HandlerSet {
	return HandlerSet{
		log:          deps.Log,
		cfg:          deps.Config,
		users:        deps.Users,
		tokens:       deps.Tokens,
		loginLimiter: deps.LoginLimiter,
		db:           deps.Database,
		cache:        deps.Cache,
	}
}

func (h HandlerSet) Register(router gin.IRouter) {
	router.GET("/healthz", h.Health)

	router.POST("/login", middleware.Throttle(h.loginLimiter, h.log), h.Login)
	router.POST("/users", h.CreateUser)

	users := router.Group("/users", middleware.Auth(h.tokens, h.log))
	{
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.PUT("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
	}
}
