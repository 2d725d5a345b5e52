// Package main is the entry point for the background worker: it runs queued
// jobs, relays the event outbox to RabbitMQ and expires idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"partscatalog/internal/config"
	"partscatalog/internal/core/security"
	"partscatalog/internal/domain/users"
	"partscatalog/internal/infrastructure/broker"
	"partscatalog/internal/infrastructure/cache"
	"partscatalog/internal/infrastructure/mail"
	"partscatalog/internal/infrastructure/queue"
	"partscatalog/internal/infrastructure/storage/postgres"
	"partscatalog/internal/infrastructure/storage/postgres/user_repo"
	"partscatalog/pkg/logger"
)

const cleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: !cfg.IsProduction(),
		Service:     cfg.App.Name + "-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting parts catalog worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN())
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.ApplicationName = cfg.App.Name + "-worker"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	txManager := postgres.NewTxManager(pool)

	rdb, err := queue.NewClient(ctx, queue.ClientConfig{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer func() { _ = rdb.Close() }()

	jobs := queue.New(rdb, queue.Config{
		MaxAttempts:  cfg.Worker.MaxAttempts,
		BackoffBase:  cfg.Worker.BackoffBase,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		JobTimeout:   cfg.Worker.JobTimeout,
	})

	userService := users.NewService(users.ServiceConfig{
		Repo: user_repo.NewUserRepo(txManager),
		Mailer: mail.NewSendGridClient(mail.Config{
			APIKey:   cfg.Mail.SendGridAPIKey,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
		}),
		AppName: cfg.Mail.FromName,
	})

	worker := queue.NewWorker(jobs)
	worker.Handle(users.JobSendWelcomeEmail, welcomeEmailHandler(userService))

	g, ctx := errgroup.WithContext(ctx)
	jobsCtx := logger.WithLogger(ctx, log.WithComponent("jobs"))
	g.Go(func() error { return worker.Run(jobsCtx) })

	var flags security.FeatureFlagProvider = cfg.Flags()
	flagCache := cache.NewFlagCache(rdb, flags)
	if err := flagCache.Start(ctx); err != nil {
		log.Warnw("feature flag overrides unavailable, using configuration only", "error", err)
	} else {
		defer flagCache.Stop()
		flags = flagCache
	}

	if flags.IsEnabled(ctx, security.FlagEventRelay) {
		publisher, err := broker.NewPublisher(broker.Config{
			URL:      cfg.Broker.URL,
			Exchange: cfg.Broker.Exchange,
		})
		if err != nil {
			log.Fatalw("failed to connect to broker", "error", err)
		}
		defer func() { _ = publisher.Close() }()

		relay := postgres.NewOutboxRelay(txManager, postgres.OutboxRelayConfig{
			BatchSize: cfg.Worker.RelayBatchSize,
		}, publisher)
		relayCtx := logger.WithLogger(ctx, log.WithComponent("outbox_relay"))
		g.Go(func() error { return relay.Run(relayCtx, cfg.Worker.RelayInterval) })
		log.Infow("outbox relay enabled", "exchange", cfg.Broker.Exchange)
	} else {
		log.Info("outbox relay disabled")
	}

	idempotency := postgres.NewIdempotencyStore(txManager, 0)
	maintCtx := logger.WithLogger(ctx, log.WithComponent("maintenance"))
	g.Go(func() error { return maintenanceLoop(maintCtx, idempotency, jobs) })

	if err := g.Wait(); err != nil {
		log.Errorw("worker stopped with error", "error", err)
		return
	}
	log.Info("worker stopped")
}

// welcomeSender is the part of users.Service the job needs.
type welcomeSender interface {
	SendWelcomeEmail(ctx context.Context, p users.WelcomeEmailPayload) error
}

func welcomeEmailHandler(svc welcomeSender) queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		var p users.WelcomeEmailPayload
		if err := job.Decode(&p); err != nil {
			return err
		}
		return svc.SendWelcomeEmail(ctx, p)
	}
}

type expirer interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type queueStatter interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// maintenanceLoop expires idempotency keys and reports queue depth each tick.
func maintenanceLoop(ctx context.Context, store expirer, jobs queueStatter) error {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		maintain(ctx, store, jobs)
	}
}

func maintain(ctx context.Context, store expirer, jobs queueStatter) {
	if stats, err := jobs.Stats(ctx); err != nil {
		logger.Warn(ctx, "queue stats unavailable", "error", err)
	} else {
		logger.Info(ctx, "job queue depth",
			"ready", stats.Ready,
			"processing", stats.Processing,
			"delayed", stats.Delayed,
			"failed", stats.Failed,
		)
		if stats.Failed > 0 {
			logger.Warn(ctx, "jobs in dead letter list", "count", stats.Failed)
		}
	}

	n, err := store.CleanupExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error(ctx, "idempotency cleanup failed", "error", err)
		}
		return
	}
	if n > 0 {
		logger.Info(ctx, "cleaned up idempotency keys", "count", n)
	}
}
