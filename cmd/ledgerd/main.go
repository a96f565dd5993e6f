package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/org/creditledger/internal/api"
	"github.com/org/creditledger/internal/audit"
	"github.com/org/creditledger/internal/auth"
	"github.com/org/creditledger/internal/core"
	"github.com/org/creditledger/internal/ledger"
	"github.com/org/creditledger/internal/policy"
	"github.com/org/creditledger/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfgFile := "config.yaml"
	if v := os.Getenv("LEDGER_CONFIG"); v != "" {
		cfgFile = v
	}
	cfg, found, err := loadConfig(cfgFile, ".env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if !found {
		log.Warn().Str("file", cfgFile).Msg("config file not found, using defaults")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store storage.Backend
	switch {
	case cfg.Dev:
		cfg.BlockInterval = 0
		store = storage.NewMemoryBackend()
		log.Warn().Msg("dev mode: ledger state is kept in memory only")
	case cfg.DBUrl == "":
		log.Fatal().Msg("db_url must be configured (or DATABASE_URL env var), or set LEDGER_DEV=1")
	default:
		pg, err := storage.NewPostgresBackend(ctx, cfg.DBUrl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pg.Close()
		version, err := storage.RunMigrations(cfg.DBUrl, cfg.MigrationsDir)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Uint("schema_version", version).Msg("migrations applied")
		store = pg
	}

	avail := core.NewAvailability()
	pol := policy.NewEngine(policy.NewStaticStore(cfg.Policies, cfg.Bindings))
	verifier := auth.NewVerifier()
	verifier.MaxSkew = cfg.MaxClockSkew
	verifier.MaxValueSize = cfg.MaxValueSize
	journal := audit.NewJournal(store, log.Logger)

	svc, err := ledger.NewService(ctx, store, avail, pol, verifier, journal, log.Logger, ledger.Config{
		BlockInterval:     cfg.BlockInterval,
		MaxBlockTxs:       cfg.MaxBlockTxs,
		MaxCommitAttempts: cfg.MaxAttempts,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start ledger")
	}
	log.Info().Uint64("height", svc.Height()).Dur("block_interval", cfg.BlockInterval).Msg("ledger ready")

	srv := api.NewServer(svc, avail, pol, journal, log.Logger, api.Config{
		ListenAddr:  cfg.ListenAddr,
		TLSCertFile: cfg.TLSCertFile,
		TLSKeyFile:  cfg.TLSKeyFile,
		AdminToken:  cfg.AdminToken,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
	})
	if cfg.AdminToken == "" {
		log.Warn().Msg("admin_token not set, pause/resume routes are disabled")
	}

	produced := make(chan struct{})
	go func() {
		defer close(produced)
		svc.Run(ctx)
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("server started")
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	cancel()
	<-produced
	log.Info().Uint64("height", svc.Height()).Msg("server stopped")
}
