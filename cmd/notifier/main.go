package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/storefront/config"
	"github.com/ErlanBelekov/storefront/internal/email"
	"github.com/ErlanBelekov/storefront/internal/health"
	"github.com/ErlanBelekov/storefront/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/storefront/internal/log"
	"github.com/ErlanBelekov/storefront/internal/metrics"
	"github.com/ErlanBelekov/storefront/internal/notify"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.InMemory() {
		log.Fatalf("notifier needs a shared database; %s runs its notifier inside the server", config.MemoryDatabaseURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer,
		health.Dependency{Name: "postgres", Pinger: pool})

	events := postgres.NewEventRepository(pool)

	notifier := notify.NewNotifier(
		events,
		postgres.NewOrderRepository(pool),
		postgres.NewUserRepository(pool),
		email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, cfg.ResendFromName, logger),
		logger,
		time.Duration(cfg.NotifyPollIntervalSec)*time.Second,
		cfg.NotifyBatchSize,
	)
	go notifier.Start(ctx)

	// A dead claim is requeued within 1.5x the timeout.
	reaper := notify.NewReaper(events, logger, cfg.NotifyClaimTimeout()/2, cfg.NotifyClaimTimeout())
	go reaper.Start(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("notifier process shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
