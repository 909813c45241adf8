/**
 * @description
 * This is the main entry point for the MCP service. It loads configuration, opens
 * storage, connects the message broker and Redis, builds the ledger and the domain
 * services, starts the order status consumer and the pending settlement report job,
 * and serves the HTTP API until it receives SIGINT or SIGTERM.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/redis/go-redis/v9: Redis client for rate limiting.
 * - internal/*: the service packages.
 * - pkg/rabbitmq: RabbitMQ producer and consumer.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/api"
	"github.com/ayerhssb/mcpSystem/internal/auth"
	"github.com/ayerhssb/mcpSystem/internal/config"
	"github.com/ayerhssb/mcpSystem/internal/dashboard"
	"github.com/ayerhssb/mcpSystem/internal/events"
	"github.com/ayerhssb/mcpSystem/internal/jobs"
	"github.com/ayerhssb/mcpSystem/internal/ledger"
	"github.com/ayerhssb/mcpSystem/internal/orders"
	"github.com/ayerhssb/mcpSystem/internal/partners"
	"github.com/ayerhssb/mcpSystem/internal/settlement"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/ayerhssb/mcpSystem/internal/wallet"
	"github.com/ayerhssb/mcpSystem/pkg/idgen"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"github.com/ayerhssb/mcpSystem/pkg/rabbitmq"
	"github.com/ayerhssb/mcpSystem/pkg/ratelimit"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	logr, err := logger.New(cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"logger init failed\" err=%v", err)
	}
	defer logr.Sync()
	boot := logger.Component(logr, "bootstrap")

	if cfg.JWTSecret == "" {
		boot.Fatalw("JWT_SECRET must be configured")
	}
	boot.Infow("starting mcp service", "port", cfg.ServerPort, "storage", cfg.StorageDriver)

	ctx := context.Background()
	repo, closeRepo, err := store.Open(ctx, store.OpenOptions{
		Driver:      cfg.StorageDriver,
		DatabaseURL: cfg.DatabaseURL,
		AutoMigrate: cfg.AutoMigrate,
	}, logr)
	if err != nil {
		boot.Fatalw("storage init failed", "err", err)
	}
	defer closeRepo()

	// Publishing is best effort; a broker outage must not block money movement.
	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Log: logr}
	if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logr); err != nil {
		boot.Warnw("rabbitmq producer unavailable; using fallback", "err", err)
	} else {
		publisher = producer
		boot.Infow("rabbitmq producer connected")
	}
	defer publisher.Close()

	limiter := connectRedis(cfg, boot)
	if limiter != nil {
		defer limiter.close()
	}

	refs := idgen.New(repo)
	l := ledger.New(repo, refs, ledger.Options{
		Currency: cfg.DefaultCurrency,
		Exchange: cfg.EventsExchange,
		Events:   publisher,
		Logger:   logr,
	})
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL())
	orderService := orders.NewService(l, settlement.NewEngine(l, logr), refs, logr)

	handlers := api.NewHandlers(api.Services{
		Auth:      auth.NewService(l, tokens, logr),
		Tokens:    tokens,
		Wallet:    wallet.NewService(l, logr),
		Partners:  partners.NewService(l, logr),
		Orders:    orderService,
		Dashboard: dashboard.NewService(repo),
	}, logr)

	routerOpts := api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins(),
		WalletPolicy:   ratelimit.NewWalletPolicy(cfg.WalletRateLimitPerMinute, cfg.WithdrawRateLimitPerHour),
	}
	if limiter != nil {
		routerOpts.Limiter = limiter.RedisLimiter
	}
	router := api.NewRouter(handlers, tokens, routerOpts)

	// Order status commands from other systems. Optional: the HTTP API covers the
	// same operations when the broker is down.
	statusConsumer := events.NewOrderStatusConsumer(orderService, logr)
	if consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, logr); err != nil {
		boot.Warnw("rabbitmq consumer unavailable; order status commands disabled", "err", err)
	} else {
		defer consumer.Close()
		if err := consumer.ConsumeWithBindings(cfg.EventsExchange, cfg.OrderStatusQueue, statusConsumer.Bindings()); err != nil {
			boot.Fatalw("order status consumer start failed", "err", err)
		}
		boot.Infow("order status consumer started", "queue", cfg.OrderStatusQueue)
	}

	scheduler := jobs.NewScheduler(jobs.NewJobs(repo, publisher, cfg.EventsExchange, logr), cfg.PendingSettlementReportSchedule)
	if err := scheduler.Start(); err != nil {
		boot.Fatalw("scheduler start failed", "err", err)
	}

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		boot.Infow("server listening", "addr", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			boot.Fatalw("server stopped unexpectedly", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	boot.Infow("shutdown started")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		boot.Errorw("shutdown failed", "err", err)
	}
	<-scheduler.Stop().Done()

	boot.Infow("shutdown complete")
}

type redisLimiter struct {
	*ratelimit.RedisLimiter
	client *redis.Client
}

func (r *redisLimiter) close() {
	r.client.Close()
}

// connectRedis returns nil when rate limiting cannot be enabled.
func connectRedis(cfg config.Config, log *zap.SugaredLogger) *redisLimiter {
	if cfg.RedisURL == "" {
		log.Warnw("redis url missing; wallet rate limiting disabled", "env", "REDIS_URL")
		return nil
	}
	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warnw("redis url parse failed; wallet rate limiting disabled", "err", err)
		return nil
	}
	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnw("redis ping failed; wallet rate limiting disabled", "err", err)
		client.Close()
		return nil
	}
	log.Infow("redis connected")
	return &redisLimiter{RedisLimiter: ratelimit.NewRedisLimiter(client, cfg.RedisRateLimitPrefix), client: client}
}
