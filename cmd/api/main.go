package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/loyaltix/server/internal/auth"
	"github.com/loyaltix/server/internal/cache"
	"github.com/loyaltix/server/internal/config"
	"github.com/loyaltix/server/internal/db"
	httpserver "github.com/loyaltix/server/internal/http"
	"github.com/loyaltix/server/internal/http/handlers"
	"github.com/loyaltix/server/internal/repo"
	"github.com/loyaltix/server/internal/sms"
)

func main() {
	_ = godotenv.Load(".env")

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	if cfg.DevMode {
		log = log.Level(zerolog.DebugLevel)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("dsn", db.RedactDSN(cfg.DatabaseURL)).Msg("open database")
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	redis, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer redis.Close()

	userRepo := repo.NewUserRepo(database)
	businessRepo := repo.NewBusinessRepo(database)
	clientRepo := repo.NewClientRepo(database)
	otpRepo := repo.NewOTPRepo(database)
	tokenRepo := repo.NewTokenRepo(database)
	newsRepo := repo.NewNewsRepo(database)

	var sender sms.Sender
	if cfg.SMSGatewayURL != "" {
		sender = sms.NewGatewaySender(cfg.SMSGatewayURL, cfg.SMSAPIKey)
	} else {
		sender = &sms.LogSender{Log: log}
	}

	issuer := auth.NewIssuer(otpRepo, redis, sender, cfg.OTPSalt, auth.IssuerConfig{
		TTL:         cfg.OTPTTL,
		Cooldown:    cfg.OTPCooldown,
		Quota:       cfg.OTPQuota,
		QuotaWindow: cfg.OTPQuotaWindow,
		DevMode:     cfg.DevMode,
	}, log)

	jwtService := auth.NewJWTService(cfg.JWTSecret)
	authService := auth.NewService(
		userRepo, businessRepo, clientRepo, otpRepo, tokenRepo,
		jwtService, redis, cfg.OTPSalt,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
	)

	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:     &handlers.AuthHandler{Issuer: issuer, Svc: authService, Log: log},
		Token:    &handlers.TokenHandler{Svc: authService, Log: log},
		Client:   &handlers.ClientHandler{Clients: clientRepo, Businesses: businessRepo, News: newsRepo, Log: log},
		Business: &handlers.BusinessHandler{Businesses: businessRepo, Clients: clientRepo, Log: log},
	}, authService, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server exited")
}

func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
