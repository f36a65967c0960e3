package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/serisow/parchemin/config"
	"github.com/serisow/parchemin/db"
	"github.com/serisow/parchemin/logging"
	"github.com/serisow/parchemin/server"
	"github.com/serisow/parchemin/services/llm_service"
	"github.com/serisow/parchemin/services/rag_service"
	"github.com/serisow/parchemin/store"
)

func main() {
	cfg := config.Load()

	logHandler, err := logging.NewDailyFileHandler(cfg.LogDir, &slog.HandlerOptions{Level: slog.LevelInfo})
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger := slog.New(logHandler)

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	documentStore := store.New(pool, logger)

	indexManager := store.NewIndexManager(pool, logger)
	if err := indexManager.ReindexIfNeeded(ctx); err != nil {
		logger.Warn("Vector index maintenance failed",
			slog.String("error", err.Error()))
	}

	chunker, err := rag_service.NewChunker(rag_service.ChunkerConfig{
		Strategy:     cfg.ChunkingStrategy,
		ChunkSize:    cfg.ChunkSize,
		Overlap:      cfg.ChunkOverlap,
		MaxChunkSize: cfg.MaxChunkSize,
	}, logger)
	if err != nil {
		log.Fatalf("Invalid chunking configuration: %v", err)
	}

	embedder := rag_service.NewEmbeddingClient(cfg.OpenAIAPIKey, logger)
	llm := llm_service.NewAnthropicService(cfg.AnthropicAPIKey, cfg.AnthropicModel, logger)

	ingestor := rag_service.NewIngestor(documentStore, embedder, chunker, cfg.MaxUploadSize, logger)
	batchIngestor := rag_service.NewBatchIngestor(documentStore, ingestor, cfg.BatchConcurrency, logger)
	retriever := rag_service.NewRetriever(documentStore, embedder, llm, rag_service.RetrieverConfig{
		TopK:            cfg.TopK,
		ScoreThreshold:  cfg.ScoreThreshold,
		MaxContextChars: cfg.MaxContextChars,
	}, logger)

	r := server.SetupRoutes(server.Services{
		Ingestor:      ingestor,
		BatchIngestor: batchIngestor,
		Retriever:     retriever,
		Storage:       documentStore,
		MaxUploadSize: cfg.MaxUploadSize,
	}, logger, pool)
	n := setupNegroni(r)

	if cfg.Environment == "production" {
		server.ServeProduction(n, server.Config{
			Domains:      cfg.Domains,
			CertCacheDir: cfg.CertCacheDir,
			HTTPPort:     cfg.HTTPPort,
			HTTPSPort:    cfg.HTTPSPort,
		})
	} else {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      n,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		}
		server.ServeDevelopment(srv)
	}
}

func setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()

	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())

	n.UseHandler(r)
	return n
}
