package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/SahanWeerasiri/genApp/internal/auth"
	"github.com/SahanWeerasiri/genApp/internal/client"
	"github.com/SahanWeerasiri/genApp/internal/config"
	"github.com/SahanWeerasiri/genApp/internal/credit"
	"github.com/SahanWeerasiri/genApp/internal/handler"
	"github.com/SahanWeerasiri/genApp/internal/logging"
	"github.com/SahanWeerasiri/genApp/internal/metrics"
	"github.com/SahanWeerasiri/genApp/internal/middleware"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/SahanWeerasiri/genApp/internal/pool"
	ws "github.com/SahanWeerasiri/genApp/internal/websocket"
	"github.com/SahanWeerasiri/genApp/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logging.New(cfg.Server.Env, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Warn().Err(err).Msg("redis not available, credits fall back to memory")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	credits, closeDB := newCreditController(ctx, cfg, redisClient, appLogger, m)
	defer closeDB()

	// WebSocket hub streams worker lifecycle events
	hub := ws.NewHub(appLogger)
	go hub.Run(ctx)

	// Worker pool
	workerPool := pool.New(
		client.NewLauncher(&cfg.Generator, appLogger),
		appLogger,
		pool.WithInitTimeout(cfg.Pool.InitTimeout()),
		pool.WithMetrics(m),
		pool.WithObserver(hub.BroadcastWorkerState),
	)
	for _, id := range cfg.Pool.Workers {
		if err := workerPool.Register(id); err != nil {
			appLogger.Fatal().Err(err).Str("worker_id", id).Msg("failed to register worker")
		}
	}
	workerPool.InitAll()

	dispatcher := pool.NewDispatcher(workerPool, m)
	bridge := pool.NewBridge(dispatcher, cfg.Pool.RequestTimeout(), appLogger, m)

	// Auth
	issuer := auth.NewIssuer(&cfg.JWT)
	issuer.Start()
	defer issuer.Stop()

	var identity auth.IdentityVerifier
	if cfg.Identity.JWKSURL != "" || cfg.Identity.Issuer != "" {
		verifier, err := auth.NewJWKSVerifier(ctx, &cfg.Identity)
		if err != nil {
			appLogger.Warn().Err(err).Msg("identity verification disabled")
		} else {
			identity = verifier
			appLogger.Info().Msg("identity token verification enabled")
		}
	}

	// Optional artifact archive
	var archive client.ArtifactArchive
	if cfg.R2.BucketName != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			appLogger.Warn().Err(err).Msg("R2 archive disabled")
		} else {
			archive = r2Client
		}
	}

	validate := validator.New()

	// Initialize handlers
	generateHandler := handler.NewGenerateHandler(credits, bridge, archive, validate, appLogger)
	creditsHandler := handler.NewCreditsHandler(credits, validate, cfg.Credits.AdReward, appLogger)
	authHandler := handler.NewAuthHandler(issuer, identity, credits, validate, cfg.Credits.Initial, cfg.Auth.AdminUIDs, appLogger)
	healthHandler := handler.NewHealthHandler(workerPool, bridge, cfg.Warmup.Prompt, cfg.Warmup.Style, appLogger)
	adminHandler := handler.NewAdminHandler(workerPool, appLogger)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(issuer)
	rateLimiter := middleware.NewRateLimiter(redisClient, appLogger, m)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := app.Group("/api")

	// Public routes
	api.Get("/health", healthHandler.Health)
	api.Get("/styles", healthHandler.Styles)
	api.Get("/health-generate", rateLimiter.WarmupLimit(cfg.RateLimit.WarmupPerMin), healthHandler.Warmup)
	api.Post("/health-generate", rateLimiter.WarmupLimit(cfg.RateLimit.WarmupPerMin), healthHandler.Warmup)
	api.Post("/register", authHandler.Register)
	api.Post("/refresh", authHandler.Refresh)
	api.Get("/verify", authHandler.Verify)
	api.Post("/verify", authHandler.Verify)

	// Generation
	api.Post("/generate",
		authMiddleware.Authenticate(),
		rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerMin),
		generateHandler.Generate,
	)

	// Credit routes
	user := api.Group("/user", authMiddleware.Authenticate())
	user.Get("/tokens", creditsHandler.Tokens)
	user.Post("/tokens/add", creditsHandler.AddTokens)
	user.Get("/profile", creditsHandler.Profile)

	// Admin routes
	admin := api.Group("/admin", authMiddleware.Authenticate(), authMiddleware.RequireRole(model.RoleAdmin))
	admin.Get("/workers", adminHandler.Workers)
	admin.Post("/workers/:id/init", adminHandler.InitWorker)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/workers", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, ws.TopicWorkers)
	}))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		appLogger.Info().Str("addr", addr).Msg("server starting")
		return app.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info().Msg("shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if cfg.Warmup.Enabled {
		startWarmup(gctx, g, cfg, bridge, appLogger)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error().Err(err).Msg("server stopped with error")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := workerPool.Stop(stopCtx); err != nil {
		appLogger.Warn().Err(err).Msg("workers did not drain before shutdown")
	}
	appLogger.Info().Msg("server stopped")
}

// newCreditController wires the primary store named by credits.primary with
// an in-memory fallback. The returned func releases the database pool.
func newCreditController(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger, m *metrics.Metrics) (*credit.Controller, func()) {
	var primary credit.Store = credit.NewRedisStore(redisClient)
	cleanup := func() {}

	if cfg.Credits.Primary == "postgres" {
		store, dbPool, err := openPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("postgres credit store unavailable, using redis")
		} else {
			primary = store
			cleanup = dbPool.Close
		}
	}

	logger.Info().Str("primary", primary.Name()).Str("fallback", "memory").Msg("credit stores configured")

	return credit.NewController(
		primary,
		credit.NewMemoryStore(cfg.Credits.Initial),
		logger,
		credit.WithStoreTimeout(cfg.Credits.StoreTimeout()),
		credit.WithMetrics(m),
	), cleanup
}

func openPostgresStore(ctx context.Context, url string) (*credit.PostgresStore, *pgxpool.Pool, error) {
	if url == "" {
		return nil, nil, errors.New("DATABASE_URL is empty")
	}
	dbPool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	store := credit.NewPostgresStore(dbPool)
	if err := store.EnsureSchema(ctx); err != nil {
		dbPool.Close()
		return nil, nil, err
	}
	return store, dbPool, nil
}

// startWarmup runs the asynq server and scheduler that keep workers warm.
func startWarmup(ctx context.Context, g *errgroup.Group, cfg *config.Config, bridge *pool.Bridge, logger zerolog.Logger) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqLogger := logging.NewAsynqLogger(logger)
	level := logging.AsynqLevel(cfg.Server.LogLevel)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues: map[string]int{
			worker.QueueWarmup: 1,
		},
		Logger:   asynqLogger,
		LogLevel: level,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeWarmup, worker.NewWarmupWorker(bridge, logger).ProcessTask)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   asynqLogger,
		LogLevel: level,
	})
	entryID, err := worker.RegisterWarmup(scheduler, &cfg.Warmup)
	if err != nil {
		logger.Error().Err(err).Msg("warm-up schedule disabled")
		return
	}
	logger.Info().Str("entry_id", entryID).Str("cron", cfg.Warmup.Cron).Msg("warm-up scheduled")

	g.Go(func() error {
		if err := srv.Start(mux); err != nil {
			return err
		}
		<-ctx.Done()
		srv.Shutdown()
		return nil
	})

	g.Go(func() error {
		if err := scheduler.Start(); err != nil {
			return err
		}
		<-ctx.Done()
		scheduler.Shutdown()
		return nil
	})
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
