// @title        lms-web API
// @version      1.0
// @description  Session, authorization and UI state for the Code Station LMS front-end.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/codestation/lms-web/internal/api"
	"github.com/codestation/lms-web/internal/api/handler"
	"github.com/codestation/lms-web/internal/api/middleware"
	"github.com/codestation/lms-web/internal/api/stream"
	"github.com/codestation/lms-web/internal/core/ports"
	"github.com/codestation/lms-web/internal/core/service"
	"github.com/codestation/lms-web/internal/infrastructure/db/memory"
	mongodb "github.com/codestation/lms-web/internal/infrastructure/db/mongo"
	redisdb "github.com/codestation/lms-web/internal/infrastructure/db/redis"
	"github.com/codestation/lms-web/internal/infrastructure/gateway"
	"github.com/codestation/lms-web/internal/infrastructure/queue"
	"github.com/codestation/lms-web/internal/pkg/config"
	"github.com/codestation/lms-web/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "lms-web",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Check{}
	tokens, closeStore, err := openTokenStore(ctx, cfg, checks)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Session.Backend).Msg("failed to open credential store")
	}
	defer closeStore()

	transport, err := gateway.NewTransport(gateway.Config{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout,
		RefreshPath: cfg.API.RefreshPath,
	}, nil, logger.Component("gateway"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid lms api configuration")
	}
	checks["lms_api"] = transport.Ping

	hub := stream.NewHub(logger.Component("stream"))
	go hub.Run(ctx)

	dispatcher := queue.NewDispatcher(cfg.Notifications.Workers, hub, logger.Component("dispatcher"))
	dispatcher.Start(ctx)

	workspaces := service.NewWorkspaces(
		service.WorkspaceConfig{
			StorageKey:      cfg.Session.StorageKey,
			NotificationTTL: cfg.Notifications.TTL,
		},
		tokens,
		func(n ports.Notifier) service.BindableGateway { return transport.NewClient(n) },
		dispatcher,
		logger.Component("workspaces"),
	)
	defer workspaces.Close()
	go sweep(ctx, workspaces, cfg.WorkspaceIdleTTL, log)

	e := api.NewRouter(api.Deps{
		Workspaces: workspaces,
		Hub:        hub,
		Checks:     checks,
		Cookie: middleware.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.SecureCookie,
			MaxAge: cfg.Session.TTL,
		},
		LoginRate:  rate.Limit(cfg.LoginRate),
		LoginBurst: cfg.LoginBurst,
		Log:        logger.Component("http"),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("lms_api", cfg.API.BaseURL).Msg("lms-web starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openTokenStore connects the configured credential backend and registers
// its readiness check.
func openTokenStore(ctx context.Context, cfg *config.Config, checks map[string]handler.Check) (ports.TokenStore, func(), error) {
	switch cfg.Session.Backend {
	case "redis":
		client, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return redisdb.NewTokenStore(client, cfg.Session.TTL), func() { _ = client.Close() }, nil

	case "mongo":
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, nil, err
		}
		store := mongodb.NewTokenStore(db, cfg.Mongo.Collection, cfg.Session.TTL)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		checks["mongodb"] = mongodb.Pinger(client)
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		return memory.NewTokenStore(cfg.Session.TTL), func() {}, nil
	}
}

// sweep drops idle workspaces until ctx is done.
func sweep(ctx context.Context, workspaces *service.Workspaces, idle time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(max(idle/2, config.MinWorkspaceIdleTTL/2))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := workspaces.Sweep(idle); n > 0 {
				log.Debug().Int("dropped", n).Int("active", workspaces.Len()).Msg("swept idle workspaces")
			}
		}
	}
}
