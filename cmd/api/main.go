package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"usersapp/internal/cache"
	"usersapp/internal/config"
	"usersapp/internal/database"
	"usersapp/internal/events"
	"usersapp/internal/handlers"
	"usersapp/internal/jobs"
	"usersapp/internal/log"
	"usersapp/internal/ratelimit"
	"usersapp/internal/repository"
	"usersapp/internal/security"
	"usersapp/internal/server"
	"usersapp/internal/service"
)

type resources struct {
	pgPool      *pgxpool.Pool
	sqlDB       *sql.DB
	redisClient *redis.Client
	scheduler   *jobs.Scheduler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrap := log.New("production", "info")
		bootstrap.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, cfg.Log.Level)

	ctx := context.Background()
	res := &resources{}

	users, err := openRepository(ctx, cfg, res)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open database")
	}

	res.redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	res.scheduler = jobs.NewScheduler(logger)
	limiter := newLoginLimiter(cfg, res, logger)

	tokens := security.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	userService := service.NewUserService(users, security.NewPasswordHasher(cfg.Security.BcryptCost), tokens, logger)
	if res.redisClient != nil {
		userService.WithPublisher(events.NewRedisPublisher(res.redisClient, cfg.Events.Stream))
	}

	deps := handlers.Deps{
		Log:          logger,
		Config:       cfg,
		Users:        userService,
		Tokens:       tokens,
		LoginLimiter: limiter,
		Database:     users,
	}
	if res.redisClient != nil {
		deps.Cache = cache.Pinger{Client: res.redisClient}
	}

	httpServer := server.NewHTTPServer(cfg, logger, handlers.NewHandlerSet(deps))

	res.scheduler.Start()

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, res)
}

func openRepository(ctx context.Context, cfg *config.AppConfig, res *resources) (repository.UserRepository, error) {
	if cfg.Database.Driver == config.DriverSQLite {
		db, err := database.NewSQLite(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		res.sqlDB = db
		return repository.NewSQLiteUserRepository(db), nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	res.pgPool = pool
	return repository.NewPostgresUserRepository(pool), nil
}

// newLoginLimiter returns nil when throttling is disabled. Without redis the
// counters live in memory and are swept by the scheduler.
func newLoginLimiter(cfg *config.AppConfig, res *resources, logger zerolog.Logger) ratelimit.Limiter {
	policy := ratelimit.Policy{Limit: cfg.Security.LoginAttempts, Window: cfg.Security.LoginWindow}
	if !policy.Enabled() {
		logger.Warn().Msg("login throttling disabled")
		return nil
	}

	if res.redisClient != nil {
		return ratelimit.NewRedisLimiter(res.redisClient, policy, "login")
	}

	limiter := ratelimit.NewMemoryLimiter(policy)
	if err := res.scheduler.AddSweeper("login-throttle", "0 * * * * *", limiter); err != nil {
		logger.Error().Err(err).Msg("schedule login throttle sweep failed")
	}
	return limiter
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, res *resources) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	res.scheduler.Stop()

	if res.pgPool != nil {
		res.pgPool.Close()
	}
	if res.sqlDB != nil {
		if err := res.sqlDB.Close(); err != nil {
			logger.Error().Err(err).Msg("database close error")
		}
	}
	if res.redisClient != nil {
		if err := res.redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
