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
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/analysis"
	"github.com/feedbacklens/backend/internal/api/handlers"
	"github.com/feedbacklens/backend/internal/cache/redis"
	"github.com/feedbacklens/backend/internal/chat"
	"github.com/feedbacklens/backend/internal/evaluation"
	"github.com/feedbacklens/backend/internal/grouping"
	"github.com/feedbacklens/backend/internal/ingestion"
	"github.com/feedbacklens/backend/internal/insights"
	"github.com/feedbacklens/backend/internal/llm"
	"github.com/feedbacklens/backend/internal/metrics"
	"github.com/feedbacklens/backend/internal/middleware/ratelimit"
	"github.com/feedbacklens/backend/internal/middleware/security"
	"github.com/feedbacklens/backend/internal/storage/sqlite"
	"github.com/feedbacklens/backend/internal/vector/milvus"
	"github.com/feedbacklens/backend/pkg/config"
	appLogger "github.com/feedbacklens/backend/pkg/logger"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

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

	appLogger.Info("Starting FeedbackLens API Server")

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

	// Left as the nil interface when Redis is down so the handler's
	// cache guard stays effective.
	var analysisCache handlers.AnalysisCache
	redisClient, err := redis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		appLogger.Warn("Redis unavailable, analysis caching disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		analysisCache = redisClient
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Warn("Milvus unavailable, semantic search disabled", zap.Error(err))
		milvusClient = nil
	} else {
		defer milvusClient.Close()
		if err := milvusClient.CreateCollection(context.Background()); err != nil {
			appLogger.Warn("Failed to prepare vector collection", zap.Error(err))
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.MaxTokens,
	)

	analyzer := analysis.NewAnalyzer(llmClient, cfg.LLM.AnalysisTemperature)
	orchestrator := analysis.NewOrchestrator(analyzer, analysis.OrchestratorConfig{
		BatchSize:          cfg.Analysis.BatchSize,
		BatchPause:         time.Duration(cfg.Analysis.BatchPauseMs) * time.Millisecond,
		RelevanceThreshold: cfg.Analysis.RelevanceThreshold,
		MaxRecommendations: cfg.Analysis.MaxRecommendations,
		MaxStreamChunks:    cfg.Analysis.MaxStreamChunks,
	})
	writer := insights.NewWriter(sqliteClient)
	grouper := grouping.NewGrouper(llmClient, sqliteClient, cfg.LLM.AnalysisTemperature)
	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient)
	chatEngine := chat.NewEngine(milvusClient, llmClient, llmClient)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	worker := evaluation.NewWorker(sqliteClient, llmClient, evaluation.Config{
		Configured:    cfg.Worker.Enabled && cfg.LLM.APIKey != "",
		StartupDelay:  time.Duration(cfg.Worker.StartupDelaySec) * time.Second,
		Interval:      time.Duration(cfg.Worker.IntervalSec) * time.Second,
		PageSize:      cfg.Worker.PageSize,
		SubBatchSize:  cfg.Worker.SubBatchSize,
		SubBatchPause: time.Duration(cfg.Worker.SubBatchPauseMs) * time.Millisecond,
		Temperature:   cfg.LLM.EvalTemperature,
	})
	worker.Start(workerCtx)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		Logger: appLogger.GetLogger(),
	})
	app.Use(limiter.Middleware())

	cacheTTL := time.Duration(cfg.Analysis.CacheTTLMinutes) * time.Minute
	analysisHandler := handlers.NewAnalysisHandler(sqliteClient, orchestrator, writer, analysisCache, cfg.Analysis.SkipThreshold, cacheTTL)
	streamHandler := handlers.NewStreamHandler(sqliteClient, orchestrator, writer)
	wsHandler := handlers.NewWebSocketHandler(sqliteClient, orchestrator, writer)
	insightsHandler := handlers.NewInsightsHandler(sqliteClient, grouper)
	evaluationHandler := handlers.NewEvaluationHandler(sqliteClient)
	documentHandler := handlers.NewDocumentHandler(processor)
	chatHandler := handlers.NewChatHandler(chatEngine)

	api := app.Group("/api/v1")

	api.Post("/documents", documentHandler.HandleUpload)
	api.Post("/analysis", analysisHandler.HandleAnalyze)
	api.Get("/analysis/stream", streamHandler.HandleStream)
	api.Get("/analysis/ws", websocket.New(wsHandler.HandleConnection))
	api.Get("/insights", insightsHandler.HandleList)
	api.Post("/insights/group", insightsHandler.HandleGroup)
	api.Get("/evaluation/status", evaluationHandler.HandleStatus)
	api.Post("/chat", chatHandler.HandleAsk)

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if err := sqliteClient.Ping(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
			})
		}
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
	stopWorker()
	app.Shutdown()
	appLogger.Info("Server stopped")
}
