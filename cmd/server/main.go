package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"legalrag-backend/audit"
	"legalrag-backend/config"
	"legalrag-backend/gateway"
	"legalrag-backend/handlers"
	"legalrag-backend/models"
	"legalrag-backend/pipeline"
	"legalrag-backend/repository"
	"legalrag-backend/retrieval"
	"legalrag-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/api/option"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := initPostgres(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to initialize Postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := storage.NewStore(storage.StoreConfig{
		Type:         storage.StoreType(cfg.StorageType),
		LocalPath:    cfg.StorageLocalPath,
		S3Bucket:     cfg.S3Bucket,
		S3Region:     cfg.S3Region,
		AWSAccessKey: cfg.AWSAccessKey,
		AWSSecretKey: cfg.AWSSecretKey,
	})
	if err != nil {
		slog.Error("failed to initialize audit storage", "error", err)
		os.Exit(1)
	}
	slog.Info("audit storage initialized", "type", cfg.StorageType)

	geminiClient, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		slog.Error("failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	defer geminiClient.Close()

	embedder := gateway.NewEmbeddingClient(cfg.GeminiAPIKey, cfg.EmbeddingEndpoint, cfg.EmbeddingModel, cfg.EmbeddingDimension)
	generator := gateway.NewGenerator(geminiClient, cfg.GenerationModel, cfg.MaxOutputTokens,
		gateway.WithCallTimeout(time.Duration(cfg.GenerationTimeoutSec)*time.Second))

	passageRepo := repository.NewPassageRepository(db, cfg.EmbeddingDimension)
	userRepo := repository.NewUserRepository(db)
	retriever := retrieval.NewRetriever(embedder, passageRepo)
	recorder := audit.NewRecorder(store)

	p := pipeline.New(retriever, generator, recorder,
		pipeline.WithDefaultTopK(cfg.DefaultTopK),
		pipeline.WithSummarizeTopK(cfg.SummarizeTopK),
		pipeline.WithTemperature(models.TaskResearch, cfg.ResearchTemperature),
		pipeline.WithTemperature(models.TaskJudgment, cfg.JudgmentTemperature),
		pipeline.WithTemperature(models.TaskSummarize, cfg.SummarizeTemperature),
	)

	queryHandler := handlers.NewQueryHandler(p, userRepo)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api")
	{
		api.POST("/research", queryHandler.Research)
		api.POST("/judgment", queryHandler.Judgment)
		api.POST("/summarize", queryHandler.Summarize)
	}

	slog.Info("server starting", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func initPostgres(connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, err
	}

	// Enable pgvector extension
	ctx := context.Background()
	_, err = pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		slog.Warn("failed to create pgvector extension, it may already be installed", "error", err)
	} else {
		slog.Info("pgvector extension enabled")
	}

	slog.Info("Postgres connection established")
	return pool, nil
}
