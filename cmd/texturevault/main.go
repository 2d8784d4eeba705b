package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkolev/texturevault/internal/config"
	"github.com/pkolev/texturevault/internal/database"
	"github.com/pkolev/texturevault/internal/services"
	"github.com/pkolev/texturevault/internal/storage"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.IsProduction() {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	if _, err := storage.New(cfg.Storage); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize blob storage")
	}

	accessService := services.NewAccessService(db)
	emailService := services.NewEmailService(cfg.SMTP)
	invitationService := services.NewInvitationService(db, accessService, emailService, cfg.BaseURL, logger)

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		for range ticker.C {
			if n, err := invitationService.PurgeExpired(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("failed to purge expired invitations")
			} else if n > 0 {
				logger.Info().Int64("purged", n).Msg("purged expired invitations")
			}
		}
	}()

	logger.Info().Str("env", cfg.Env).Msg("texturevault started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
}
