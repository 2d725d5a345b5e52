// Package main is the entry point for the parts catalog API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"partscatalog/internal/config"
	"partscatalog/internal/domain/analysis"
	"partscatalog/internal/domain/auth"
	"partscatalog/internal/domain/catalogs/manufacturer"
	"partscatalog/internal/domain/files"
	"partscatalog/internal/domain/users"
	"partscatalog/internal/infrastructure/cache"
	"partscatalog/internal/infrastructure/cloud/anthropic"
	"partscatalog/internal/infrastructure/cloud/gcs"
	v1 "partscatalog/internal/infrastructure/http/v1"
	"partscatalog/internal/infrastructure/http/v1/handlers"
	"partscatalog/internal/infrastructure/http/v1/middleware"
	"partscatalog/internal/infrastructure/queue"
	"partscatalog/internal/infrastructure/storage/postgres"
	"partscatalog/internal/infrastructure/storage/postgres/catalog_repo"
	"partscatalog/internal/infrastructure/storage/postgres/file_repo"
	"partscatalog/internal/infrastructure/storage/postgres/user_repo"
	"partscatalog/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: !cfg.IsProduction(),
		Service:     cfg.App.Name,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting parts catalog server", "env", cfg.App.Env)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN())
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.ApplicationName = cfg.App.Name + "-api"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to create audit service", "error", err)
	}

	// --- Redis (optional: without it jobs are unavailable) ---
	var rdb *redis.Client
	var jobs *queue.Queue
	rdb, err = queue.NewClient(ctx, queue.ClientConfig{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warnw("redis unavailable, background jobs disabled", "error", err)
	} else {
		defer func() { _ = rdb.Close() }()
		jobs = queue.New(rdb, queue.Config{
			MaxAttempts: cfg.Worker.MaxAttempts,
			BackoffBase: cfg.Worker.BackoffBase,
		})
	}

	// --- Domain services ---
	manufacturerService := manufacturer.NewService(manufacturer.ServiceConfig{
		Repo:      catalog_repo.NewManufacturerRepo(txManager),
		TxManager: txManager,
		Events:    postgres.NewOutboxPublisher(txManager),
		Audit:     auditService,
		History:   auditService,
	})

	userCfg := users.ServiceConfig{
		Repo:    user_repo.NewUserRepo(txManager),
		AppName: cfg.Mail.FromName,
	}
	if jobs != nil {
		userCfg.Queue = jobs
	}
	userService := users.NewService(userCfg)

	staticFlags := cfg.Flags()
	log.Infow("feature flags from configuration", "enabled", staticFlags.Enabled())

	routerCfg := v1.RouterConfig{
		Logger:        log,
		Production:    cfg.IsProduction(),
		Flags:         staticFlags,
		Idempotency:   postgres.NewIdempotencyStore(txManager, 0),
		Manufacturers: manufacturerService,
		Users:         userService,
		FileMaxBytes:  cfg.Storage.MaxUploadBytes,
		Database:      pool,
	}
	if rdb != nil {
		routerCfg.Redis = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

		flags := cache.NewFlagCache(rdb, staticFlags)
		if err := flags.Start(ctx); err != nil {
			log.Warnw("feature flag overrides unavailable, using configuration only", "error", err)
		} else {
			defer flags.Stop()
			routerCfg.Flags = flags
		}
	}

	if cfg.Auth.JWTSecret != "" {
		jwtCfg := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
		jwtCfg.Issuer = cfg.Auth.Issuer
		routerCfg.JWTValidator = auth.NewJWTService(jwtCfg)
	} else {
		log.Warn("JWT_SECRET not set, all requests are anonymous")
	}

	// --- Files on GCS ---
	var images analysis.ImageSource
	if cfg.Storage.Bucket != "" {
		client, err := gcs.NewClient(ctx, gcs.Config{
			ProjectID:       cfg.Storage.ProjectID,
			CredentialsFile: cfg.Storage.CredentialsFile,
		})
		if err != nil {
			log.Fatalw("failed to create storage client", "error", err)
		}
		defer func() { _ = client.Close() }()

		fileService := files.NewService(files.ServiceConfig{
			Repo:      file_repo.NewFileRepo(txManager),
			Storage:   gcs.New(client),
			Bucket:    cfg.Storage.Bucket,
			URLExpiry: cfg.Storage.URLExpiry(),
			MaxBytes:  cfg.Storage.MaxUploadBytes,
		})
		routerCfg.Files = fileService
		images = fileImages{files: fileService}
	} else {
		log.Warn("GCS_BUCKET_NAME not set, file routes disabled")
	}

	// --- AI analysis ---
	analyzer := anthropic.NewAnalyzer(anthropic.Config{
		APIKey:    cfg.AI.AnthropicAPIKey,
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
	})
	routerCfg.Analysis = analysis.NewService(analyzer, images, int(cfg.Storage.MaxUploadBytes))
	if !analyzer.Available() {
		log.Warn("ANTHROPIC_API_KEY not set, AI analysis answers 503")
	}

	// --- Router ---
	router := v1.NewRouter(routerCfg)
	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins(),
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Authorization", "Content-Type",
			middleware.HeaderIdempotencyKey, middleware.HeaderRequestID, middleware.HeaderTraceID,
		},
		ExposedHeaders:   []string{middleware.HeaderRequestID, middleware.HeaderTraceID},
		AllowCredentials: true,
	}).Handler(router)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	postgres.LogPoolStats(ctx, pool.Unwrap())

	log.Info("server stopped")
}
