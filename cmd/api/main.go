package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docsage/backend/internal/api/handlers"
	redisCache "github.com/docsage/backend/internal/cache/redis"
	"github.com/docsage/backend/internal/files"
	"github.com/docsage/backend/internal/intent"
	"github.com/docsage/backend/internal/llm"
	"github.com/docsage/backend/internal/metrics"
	"github.com/docsage/backend/internal/middleware/ratelimit"
	"github.com/docsage/backend/internal/middleware/security"
	"github.com/docsage/backend/internal/middleware/validation"
	"github.com/docsage/backend/internal/query"
	"github.com/docsage/backend/internal/storage/sqlite"
	"github.com/docsage/backend/internal/vector/milvus"
	"github.com/docsage/backend/pkg/config"
	appLogger "github.com/docsage/backend/pkg/logger"
	"github.com/docsage/backend/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting DocSage API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	startupRetry := retry.DefaultConfig()
	startupRetry.MaxAttempts = 5
	startupRetry.Logger = appLogger.GetLogger()

	// Redis is an optional accelerator; the embedding cache simply stays
	// off when it cannot be reached.
	var embeddingCache llm.EmbeddingCache
	if cfg.Redis.Enabled {
		var redisClient *redisCache.Client
		err := retry.Do(context.Background(), startupRetry, func() error {
			var err error
			redisClient, err = redisCache.NewClient(
				context.Background(),
				cfg.Redis.Host,
				cfg.Redis.Port,
				cfg.Redis.Password,
				cfg.Redis.DB,
			)
			return err
		})
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without embedding cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			embeddingCache = redisClient
		}
	}

	var milvusClient *milvus.Client
	err = retry.Do(context.Background(), startupRetry, func() error {
		var err error
		milvusClient, err = milvus.NewClient(
			context.Background(),
			cfg.Milvus.Endpoint,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
		)
		return err
	})
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.CreateCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		embeddingCache,
	)

	executor := files.NewExecutor(sqliteClient)
	router := intent.NewRouter(llmClient)
	engine := query.NewEngine(
		sqliteClient,
		milvusClient,
		llmClient,
		executor,
		router,
		sqliteClient,
		cfg.Reference.FilenamePattern,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	queryHandler := handlers.NewQueryHandler(engine, sqliteClient)
	documentHandler := handlers.NewDocumentHandler(sqliteClient)
	actionsHandler := handlers.NewActionsHandler(executor)
	wsHandler := handlers.NewWebSocketHandler(engine)

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)
	api.Get("/documents", documentHandler.ListDocuments)
	api.Post("/actions", actionsHandler.ExecuteAction)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
