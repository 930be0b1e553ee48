// cmd/rating-service/main.go
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

	"go.uber.org/zap"

	"safety-rating/internal/api"
	"safety-rating/internal/common/aws"
	"safety-rating/internal/common/camunda"
	"safety-rating/internal/common/config"
	"safety-rating/internal/common/database"
	"safety-rating/internal/common/logger"
	"safety-rating/internal/common/observability"
	"safety-rating/internal/rating/aggregator"
	"safety-rating/internal/rating/history"
	"safety-rating/internal/rating/service"
	"safety-rating/internal/rating/snapshot"
	"safety-rating/migrations"

	gst "safety-rating/internal/workers/rating/generate-safety-tips"
	rcr "safety-rating/internal/workers/rating/recompute-company-rating"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting rating service...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.AutoMigrate {
		applied, err := pg.Migrate(ctx, migrations.FS)
		if err != nil {
			zapLog.Fatal("migrations failed", zap.Error(err))
		}
		zapLog.Info("migrations applied", zap.Strings("files", applied))
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Rating engine ---
	aggCfg := aggregator.ConfigFromApp(cfg.Rating)
	if err := aggCfg.Validate(); err != nil {
		zapLog.Fatal("invalid rating configuration", zap.Error(err))
	}

	store := history.NewPostgresStore(pg.DB)
	deduper := history.NewRedisDeduper(redis.Client, time.Duration(cfg.Rating.History.DedupeTTL)*time.Second)

	deps := service.Dependencies{
		Source:     snapshot.NewPostgresSource(pg, cfg.Rating.PSR.RecentInspectionsDays, log),
		Aggregator: aggregator.New(aggCfg),
		Recorder:   history.NewRecorder(store, deduper, log),
		History:    store,
		Logger:     log,
	}

	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		deps.Alerts = snsClient
		zapLog.Info("Rating alerts enabled", zap.String("topicArn", cfg.Notifications.SNS.TopicARN))
	}

	ratings := service.New(deps, service.ConfigFromApp(cfg))

	readiness := map[string]api.Pinger{
		"postgres": pg,
		"redis":    redis,
	}

	// --- Zeebe workers ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda, log)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		readiness["zeebe"] = zeebe

		recompute := rcr.NewHandler(rcr.ConfigFromApp(cfg), ratings, obs, log)
		zeebe.StartWorker(rcr.TaskType, config.GetWorkerConfig(cfg, rcr.TaskType), recompute.Handle)

		tips := gst.NewHandler(gst.ConfigFromApp(cfg), ratings, obs, log)
		zeebe.StartWorker(gst.TaskType, config.GetWorkerConfig(cfg, gst.TaskType), tips.Handle)
	} else {
		zapLog.Info("Camunda disabled, job workers not started")
	}

	// --- HTTP API, health & metrics ---
	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      api.New(ratings, readiness, log).Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Rating service stopped gracefully")
}
