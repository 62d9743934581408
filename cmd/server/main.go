// Package main is the application entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/catalog"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/handler"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/matching"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/middleware"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/pipeline"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/repository"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/service"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/database"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/embedding"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/es"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/kafka"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/llm"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	// 1. Configuration
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. Logger
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")

	// 3. Infrastructure clients
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("elasticsearch init failed: %s", err)
		return
	}
	kafka.InitProducers(cfg.Kafka)

	if err := database.DB.AutoMigrate(
		&model.CatalogVersion{},
		&model.CatalogEntry{},
		&model.BatchRun{},
		&model.MatchResult{},
	); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	// 4. Repositories
	versionRepo := repository.NewCatalogVersionRepository(database.DB)
	entryRepo := repository.NewCatalogEntryRepository(database.DB)
	runRepo := repository.NewBatchRunRepository(database.DB)
	resultRepo := repository.NewMatchResultRepository(database.DB)

	// 5. Catalog store and matching pipeline (dependency injection)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	store := catalog.NewStore(
		versionRepo,
		entryRepo,
		embeddingClient,
		&es.Indexer{IndexName: cfg.Elasticsearch.IndexName},
		kafka.PublishCatalogEvent,
		cfg.Embedding.Model,
		cfg.Embedding.Dimensions,
	)
	extractor := matching.NewExtractor(matching.NewLLMAttributeParser(llmClient))
	retriever := matching.NewRetriever(
		embeddingClient,
		&es.Searcher{IndexName: cfg.Elasticsearch.IndexName},
		store,
		cfg.Matching,
	)
	scorer := matching.NewScorer(cfg.Matching, matching.NewLLMArbiter(llmClient))
	matcher := matching.NewMatcher(extractor, retriever, scorer, cfg.Matching)

	// 6. Services
	objectExists := func(ctx context.Context, objectName string) (bool, error) {
		return storage.ObjectExists(ctx, cfg.MinIO.BucketName, objectName)
	}
	catalogService := service.NewCatalogService(store, objectExists, kafka.ProduceIngestTask)
	batchService := service.NewBatchService(
		matcher,
		store,
		runRepo,
		resultRepo,
		service.NewRedisCancelFlag(database.RDB),
		cfg.Matching,
	)

	// 7. Catalog ingestion pipeline, fed by the Kafka consumer
	processor := pipeline.NewProcessor(store, cfg.MinIO)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. Gin engine with the custom logger and recovery middlewares
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. Routes
	apiV1 := r.Group("/api/v1")
	{
		catalogGroup := apiV1.Group("/catalog")
		{
			catalogHandler := handler.NewCatalogHandler(catalogService)
			catalogGroup.POST("/ingest", catalogHandler.Ingest)
			catalogGroup.POST("/:versionId/activate", catalogHandler.Activate)
			catalogGroup.GET("/versions", catalogHandler.ListVersions)
			catalogGroup.GET("/versions/:versionId", catalogHandler.GetVersion)
			catalogGroup.GET("/active", catalogHandler.GetActive)
		}

		apiV1.POST("/match", handler.NewMatchHandler(matcher).Match)

		batchGroup := apiV1.Group("/batch")
		{
			batchHandler := handler.NewBatchHandler(batchService)
			batchGroup.POST("", batchHandler.Submit)
			batchGroup.GET("", batchHandler.ListRuns)
			batchGroup.GET("/:runId", batchHandler.GetRun)
			batchGroup.GET("/:runId/results", batchHandler.GetResults)
			batchGroup.POST("/:runId/cancel", batchHandler.Cancel)
		}
	}

	// Start the HTTP server with graceful shutdown.
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}

	// The Kafka consumer loop ends with the process; in-flight ingestion
	// tasks are re-delivered on the next start.
	log.Info("server stopped")
}
