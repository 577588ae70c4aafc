package main

import (
	"context"
	"log"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/database"
	"github.com/querypilot/querypilot/internal/llm"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/processor"
	"github.com/querypilot/querypilot/internal/session"
)

func main() {
	ctx := context.Background()
	logger := observability.NewLogger("main")

	// Load and validate configuration
	cfg, err := config.NewDefaultLoader().Load(ctx)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	if cfg.IsProduction() {
		if err := cfg.ValidateProduction(); err != nil {
			log.Fatal("Configuration not fit for production:", err)
		}
	}

	gin.SetMode(cfg.Server.GinMode)

	if !cfg.Query.EnableSafetyChecks {
		logger.Warn(ctx, "Safety checks disabled in config, execution layer still enforces them", nil)
	}

	// Redis holds per-session query state
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// OpenAI client for SQL generation and explanation
	llmClient, err := llm.NewOpenAIClient(llm.Config{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to initialize LLM client:", err)
	}

	// SQLite engine with the safety gate wired in as its guard
	engine, err := database.NewEngine(database.EngineConfig{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxRows:      cfg.Query.MaxResultRows,
	}, processor.NewSafetyChecker())
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer engine.Close()

	if err := database.HealthCheck(engine.DB()); err != nil {
		logger.Warn(ctx, "Demo schema missing, run the migrate and seed commands first", map[string]interface{}{
			"error": err.Error(),
		})
	}

	sessions := session.NewManager(rdb, cfg.Session.TTL)

	// Health checks
	healthChecker := observability.NewHealthChecker()
	healthChecker.Register("database", observability.DatabaseHealthCheck(engine.Ping))
	healthChecker.Register("redis", observability.RedisHealthCheck(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}))
	healthChecker.Register("llm", observability.LLMHealthCheck(llmClient.Ping))
	healthChecker.Register("memory", observability.MemoryHealthCheck(func() (uint64, uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc, m.Sys
	}))

	qp := processor.NewQueryProcessor(llmClient, engine, sessions, processor.ProcessorConfig{
		QueryTimeout:      cfg.Query.Timeout,
		MaxQuestionLength: cfg.Query.MaxQuestionLength,
		MaxHistoryEntries: cfg.Query.MaxHistoryEntries,
	})
	qp.SetHealthChecker(healthChecker)

	router := qp.SetupRoutes()

	logger.Info(ctx, "Query service starting", map[string]interface{}{
		"port":     cfg.Server.Port,
		"database": cfg.Database.Path,
		"model":    cfg.OpenAI.Model,
	})

	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Error(ctx, "Failed to start server", err, nil)
		log.Fatal("Failed to start server:", err)
	}
}
