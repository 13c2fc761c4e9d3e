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
	"github.com/sethvargo/go-envconfig"

	"github.com/codestation/lms-web/internal/lmsstub"
	"github.com/codestation/lms-web/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.Init(logger.Options{
		Level:   os.Getenv("LOG_LEVEL"),
		Pretty:  true,
		Service: "lms-stub",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg lmsstub.Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	srv := lmsstub.New(cfg, log)
	if cfg.Seed {
		if err := srv.SeedDemo(); err != nil {
			log.Fatal().Err(err).Msg("failed to seed demo data")
		}
		log.Info().Str("password", lmsstub.SeedPassword).Msg("seeded admin, instructor and student accounts")
	}

	e := srv.Handler()
	go func() {
		log.Info().Str("port", cfg.Port).Msg("lms stub api starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
