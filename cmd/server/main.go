package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Harsh-BH/threatrelay/internal/config"
	handler "github.com/Harsh-BH/threatrelay/internal/delivery/http"
	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/executor"
	"github.com/Harsh-BH/threatrelay/internal/notify"
	"github.com/Harsh-BH/threatrelay/internal/poller"
	"github.com/Harsh-BH/threatrelay/internal/publisher"
	"github.com/Harsh-BH/threatrelay/internal/repository"
	"github.com/Harsh-BH/threatrelay/internal/repository/memory"
	"github.com/Harsh-BH/threatrelay/internal/repository/postgres"
	redisrepo "github.com/Harsh-BH/threatrelay/internal/repository/redis"
	"github.com/Harsh-BH/threatrelay/internal/scheduler"
	"github.com/Harsh-BH/threatrelay/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting threatrelay server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	gin.SetMode(cfg.Server.GinMode)
	health := map[string]repository.Pinger{}
	g, ctx := errgroup.WithContext(ctx)

	// Correlation store
	var store repository.ResultStore
	switch cfg.Store.Backend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("Connected to Redis")
		rs := redisrepo.NewRedisResultStore(rdb, cfg.Store.ResultTTL)
		store = rs
		health["redis"] = rs
	default:
		ms := memory.NewResultStore()
		store = ms
		health["store"] = ms
		if cfg.Store.ResultTTL > 0 {
			sweep, err := scheduler.NewEvictionSweep(ms, cfg.Store.ResultTTL, cfg.Store.EvictionSchedule, logger)
			if err != nil {
				return err
			}
			g.Go(func() error { return sweep.Run(ctx) })
		}
	}

	// Event feed
	var feed repository.EventRepository
	switch cfg.Events.Backend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Events.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("Connected to PostgreSQL")
		feed = postgres.NewPostgresEventRepository(pool)
		health["postgres"] = pool
	default:
		mf := memory.NewEventFeed(cfg.Events.Capacity)
		feed = mf
		health["events"] = mf
	}

	// Notification sinks
	sinks := []notify.Sink{notify.FeedSink(feed)}
	if cfg.RabbitMQ.URL != "" {
		pub, err := publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer pub.Close()
		logger.Info("Connected to RabbitMQ")
		sinks = append(sinks, notify.BroadcastSink(pub))
	}
	notifier := notify.NewNotifier(cfg.Notify.PoolSize, cfg.Notify.QueueSize, sinks, logger)
	g.Go(func() error { return notifier.Run(ctx) })

	// Workers
	endpoints := make(map[domain.Workflow]executor.Endpoint)
	for name, wh := range cfg.Worker.Webhooks() {
		endpoints[domain.Workflow(name)] = executor.Endpoint{EnvKey: wh.EnvKey, URL: wh.URL}
		if wh.URL == "" {
			logger.Warn("Workflow webhook not configured", zap.String("workflow", name), zap.String("env", wh.EnvKey))
		}
	}
	exec := executor.NewWebhookExecutor(endpoints, cfg.Worker.APIKey, cfg.Worker.Timeout, logger)

	router := handler.NewRouter(ctx, handler.RouterDeps{
		Dispatch:        usecase.NewDispatchJobUsecase(exec, notifier, logger),
		Probe:           usecase.NewProbeWorkflowUsecase(exec, logger),
		Workflows:       exec,
		Callback:        usecase.NewReceiveCallbackUsecase(store, notifier, logger),
		Status:          usecase.NewCheckStatusUsecase(store, logger),
		Record:          usecase.NewRecordEventUsecase(feed, notifier, logger),
		List:            usecase.NewListEventsUsecase(feed, cfg.Events.Capacity),
		HealthChecks:    health,
		Policy:          poller.Policy{MaxAttempts: cfg.Poll.MaxAttempts, Interval: cfg.Poll.Interval},
		PublicBaseURL:   cfg.Server.PublicBaseURL,
		RateLimitPerMin: cfg.Server.RateLimit,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
