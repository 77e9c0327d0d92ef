package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kobo-wallet/kobo/internal/config"
	"github.com/kobo-wallet/kobo/internal/infra"
	"github.com/kobo-wallet/kobo/internal/logging"
	"github.com/kobo-wallet/kobo/internal/metrics"
	"github.com/kobo-wallet/kobo/internal/notification"
	"github.com/kobo-wallet/kobo/internal/riskcheck"
	"github.com/kobo-wallet/kobo/internal/routes"
	"github.com/kobo-wallet/kobo/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		if err := infra.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("run migrations", "error", err)
			os.Exit(1)
		}
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
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
	}

	m := metrics.New()

	var notifier notification.Notifier = notification.NewLoggerNotifier(logger)
	if cfg.Mail.Host != "" {
		notifier = notification.NewSMTPNotifier(notification.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	} else {
		logger.Warn("EMAIL_HOST not set, OTP emails are logged instead of sent")
	}
	dispatcher := notification.NewDispatcher(notifier, logger, m, cfg.Mail.Timeout)

	var risk riskcheck.Checker = riskcheck.Disabled{}
	if cfg.Karma.Enabled {
		risk = riskcheck.NewKarmaClient(cfg.Karma.BaseURL, cfg.Karma.Secret, cfg.Karma.Timeout)
	}

	srv, err := server.New(routes.Deps{
		Cfg:        cfg,
		DB:         db,
		Cache:      cache,
		Logger:     logger,
		Metrics:    m,
		Risk:       risk,
		Dispatcher: dispatcher,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()
	logger.Info("server listening", "addr", cfg.Address(), "env", cfg.Env)

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
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("pending notifications abandoned", "error", err)
	}

	logger.Info("server exited cleanly")
}
