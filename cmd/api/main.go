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

	"github.com/docassist/backend/internal/admin"
	"github.com/docassist/backend/internal/api/handlers"
	redisCache "github.com/docassist/backend/internal/cache/redis"
	"github.com/docassist/backend/internal/chunker"
	"github.com/docassist/backend/internal/citation"
	"github.com/docassist/backend/internal/embedding"
	"github.com/docassist/backend/internal/index"
	"github.com/docassist/backend/internal/indexing"
	"github.com/docassist/backend/internal/llm"
	"github.com/docassist/backend/internal/metrics"
	"github.com/docassist/backend/internal/middleware/ratelimit"
	"github.com/docassist/backend/internal/middleware/security"
	"github.com/docassist/backend/internal/middleware/validation"
	"github.com/docassist/backend/internal/query"
	"github.com/docassist/backend/internal/storage/sqlite"
	"github.com/docassist/backend/internal/vector/milvus"
	"github.com/docassist/backend/pkg/config"
	appLogger "github.com/docassist/backend/pkg/logger"
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

	appLogger.Info("Starting document assistant API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	var embedder index.Embedder = llmClient
	if cfg.Redis.Enabled {
		cacheClient, err := redisCache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cacheClient.Close()
		embedder = embedding.NewCachedEmbedder(llmClient, cacheClient)
	}

	registry := index.NewRegistry(milvusClient, embedder, sqliteClient)
	err = registry.Preload(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to preload index registry", zap.Error(err))
	}

	settings := admin.NewStore(sqliteClient, cfg.LLM.Model)
	if err := settings.EnsureDefaults(context.Background()); err != nil {
		appLogger.Fatal("Failed to seed admin settings", zap.Error(err))
	}

	ck := chunker.New(cfg.Chunker.WindowSize, cfg.Chunker.Overlap)
	indexer := indexing.NewService(ck, registry)
	engine := query.NewEngine(registry, settings, llmClient, cfg.LLM.TopK)
	resolver := citation.NewResolver(sqliteClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		Logger:               appLogger.GetLogger(),
	})
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxQueryLength:  5000,
		MaxDocumentSize: cfg.Server.BodyLimit,
	}))

	queryHandler := handlers.NewQueryHandler(engine, resolver, sqliteClient)
	documentHandler := handlers.NewDocumentHandler(indexer, sqliteClient)
	collectionHandler := handlers.NewCollectionHandler(sqliteClient, registry)
	adminHandler := handlers.NewAdminHandler(settings, cfg.Admin.Password)
	wsHandler := handlers.NewWebSocketHandler(engine, resolver, sqliteClient)

	api := app.Group("/api/v1")

	api.Post("/query/simple", queryHandler.HandleSimpleQuery)
	api.Post("/query/chat", queryHandler.HandleChatQuery)
	api.Get("/chat-history/:collection_id", queryHandler.GetChatHistory)

	api.Post("/documents", documentHandler.UploadDocument)
	api.Get("/documents/:collection_id", documentHandler.ListDocuments)

	api.Post("/collections", collectionHandler.CreateCollection)
	api.Get("/collections", collectionHandler.ListCollections)
	api.Get("/collections/:collection_id", collectionHandler.GetCollection)
	api.Delete("/collections/:collection_id", collectionHandler.DeleteCollection)

	adminGroup := app.Group("/admin-settings")
	adminGroup.Post("/change-model", adminHandler.ChangeModel)
	adminGroup.Get("/current-model", adminHandler.GetCurrentModel)
	adminGroup.Post("/set-custom-context", adminHandler.SetCustomContext)
	adminGroup.Get("/current-custom-context", adminHandler.GetCustomContext)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

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
