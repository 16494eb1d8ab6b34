package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/naira-wallet/wallet_service/internal/config"
	"github.com/naira-wallet/wallet_service/internal/infra"
	"github.com/naira-wallet/wallet_service/internal/logging"
	"github.com/naira-wallet/wallet_service/internal/metrics"
	"github.com/naira-wallet/wallet_service/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" || !cfg.IsDev() {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if cfg.AutoMigrate {
			if err := infra.Migrate(ctx, db); err != nil {
				logger.Error("migrate", "error", err)
				os.Exit(1)
			}
			logger.Info("schema migrated")
		}
	} else {
		logger.Warn("DATABASE_URL not set, using the in-memory ledger")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" || !cfg.IsDev() {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("REDIS_URL not set, idempotency and rate limiting are disabled")
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			logger.Error("JWT_SECRET must be set", slog.String("env", cfg.AppEnv))
			os.Exit(1)
		}
		cfg.JWTSecret = ephemeralSecret()
		logger.Warn("JWT_SECRET not set, tokens will not survive a restart")
	}

	srv, err := server.New(cfg, db, cache, logger, metrics.New())
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

func ephemeralSecret() string {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		panic(err)
	}
	return hex.EncodeToString(raw)
}
