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
	"github.com/ErlanBelekov/storefront/internal/auth"
	"github.com/ErlanBelekov/storefront/internal/email"
	"github.com/ErlanBelekov/storefront/internal/health"
	"github.com/ErlanBelekov/storefront/internal/infrastructure/memory"
	"github.com/ErlanBelekov/storefront/internal/infrastructure/postgres"
	redisstore "github.com/ErlanBelekov/storefront/internal/infrastructure/redis"
	ctxlog "github.com/ErlanBelekov/storefront/internal/log"
	"github.com/ErlanBelekov/storefront/internal/metrics"
	"github.com/ErlanBelekov/storefront/internal/notify"
	"github.com/ErlanBelekov/storefront/internal/repository"
	httptransport "github.com/ErlanBelekov/storefront/internal/transport/http"
	"github.com/ErlanBelekov/storefront/internal/transport/http/handler"
	"github.com/ErlanBelekov/storefront/internal/transport/http/middleware"
	"github.com/ErlanBelekov/storefront/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Both are process-wide and read-only from here on.
	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		log.Fatalf("password hasher: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var (
		users  repository.UserRepository
		orders repository.OrderRepository
		events repository.EventRepository
		deps   []health.Dependency
	)

	if cfg.InMemory() {
		store := memory.NewStore()
		users, orders, events = store.Users(), store.Orders(), store.Events()
		deps = append(deps, health.Dependency{Name: "memory", Pinger: store})
		logger.Warn("using in-memory store, data is lost on exit")
	} else {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			stop()
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()

		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, pool); err != nil {
				stop()
				pool.Close()
				log.Fatalf("migrate: %v", err)
			}
			logger.Info("migrations applied")
		}

		users = postgres.NewUserRepository(pool)
		orders = postgres.NewOrderRepository(pool)
		events = postgres.NewEventRepository(pool)
		deps = append(deps, health.Dependency{Name: "postgres", Pinger: pool})
	}

	if cfg.RedisURL != "" {
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			stop()
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()

		users = redisstore.NewCachedUserRepository(users, client, cfg.UserCacheTTL(), logger)
		deps = append(deps, health.Dependency{Name: "redis", Pinger: redisstore.Pinger{Client: client}})
		logger.Info("user cache enabled", "ttl", cfg.UserCacheTTL())
	}

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps...)

	guard := middleware.NewGuard(tokens, users, cfg.AuthTimeout(), logger)
	router := httptransport.NewRouter(logger, guard, httptransport.Handlers{
		Auth:  handler.NewAuthHandler(usecase.NewAuthUsecase(users, tokens, hasher, cfg.AdminSecret), logger),
		Order: handler.NewOrderHandler(usecase.NewOrderUsecase(orders), logger),
		User:  handler.NewUserHandler(usecase.NewUserUsecase(users), logger),
	}, cfg.RequestTimeout())

	// The in-memory store is not shared with a separate notifier process.
	if cfg.InMemory() {
		sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, cfg.ResendFromName, logger)
		n := notify.NewNotifier(events, orders, users, sender, logger,
			time.Duration(cfg.NotifyPollIntervalSec)*time.Second, cfg.NotifyBatchSize)
		go n.Start(ctx)
		go notify.NewReaper(events, logger, cfg.NotifyClaimTimeout()/2, cfg.NotifyClaimTimeout()).Start(ctx)
	}

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
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
