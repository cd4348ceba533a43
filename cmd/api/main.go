// Package main implements the Pathways API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/PathwaysAI/pathways-mvp/engine/assess"
	"github.com/PathwaysAI/pathways-mvp/engine/embedding"
	"github.com/PathwaysAI/pathways-mvp/engine/graph"
	"github.com/PathwaysAI/pathways-mvp/engine/pathway"
	"github.com/PathwaysAI/pathways-mvp/engine/vecindex"
	"github.com/PathwaysAI/pathways-mvp/engine/vecindex/qdrant"
	"github.com/PathwaysAI/pathways-mvp/pkg/metrics"
	"github.com/PathwaysAI/pathways-mvp/pkg/mid"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	EmbedProvider string // "ollama" or "fallback"
	OllamaURL     string
	OllamaModel   string
	OllamaDim     int
	OllamaRPS     float64
	StorePath     string
	RulesPath     string
	VectorBackend string // "memory" or "qdrant"
	QdrantAddr    string
	QdrantColl    string
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPass     string
	CORSOrigin    string
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8000"),
		EmbedProvider: envOr("EMBED_PROVIDER", "fallback"),
		OllamaURL:     envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   envOr("OLLAMA_MODEL", "nomic-embed-text"),
		OllamaDim:     envIntOr("OLLAMA_DIM", 768),
		OllamaRPS:     envFloatOr("OLLAMA_RPS", 10),
		StorePath:     envOr("STORE_PATH", ""),
		RulesPath:     envOr("RULES_PATH", ""),
		VectorBackend: envOr("VECTOR_BACKEND", "memory"),
		QdrantAddr:    envOr("QDRANT_ADDR", "localhost:6334"),
		QdrantColl:    envOr("QDRANT_COLLECTION", "pathways"),
		Neo4jURL:      envOr("NEO4J_URL", ""),
		Neo4jUser:     envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     envOr("NEO4J_PASS", "password"),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Embedding provider ---
	var primary embedding.Provider
	if cfg.EmbedProvider == "ollama" {
		primary = embedding.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaDim, cfg.OllamaRPS)
	}
	provider := embedding.NewGuard(primary, logger)
	if provider.FallbackOnly() {
		logger.Warn("no embedding backend configured, using deterministic fallback embeddings")
	}

	// --- Vector backend ---
	var backend vectorBackend
	var memIndex *vecindex.Index
	switch cfg.VectorBackend {
	case "qdrant":
		store, err := qdrant.New(cfg.QdrantAddr, cfg.QdrantColl)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer store.Close()
		if err := store.EnsureCollection(ctx, provider.Dimension()); err != nil {
			return fmt.Errorf("qdrant ensure collection: %w", err)
		}
		backend = qdrant.NewAdapter(store, provider.Dimension(), logger)
		logger.Info("using qdrant vector backend", "addr", cfg.QdrantAddr, "collection", cfg.QdrantColl)
	default:
		index, err := vecindex.NewIndex(provider.Dimension())
		if err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
		if cfg.StorePath != "" {
			if err := index.LoadFile(cfg.StorePath); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					logger.Info("no persisted index found, starting empty", "path", cfg.StorePath)
				} else {
					return fmt.Errorf("load index: %w", err)
				}
			} else {
				logger.Info("loaded persisted index", "path", cfg.StorePath, "size", index.Size())
			}
		}
		backend = index
		memIndex = index
	}

	// --- Articulation graph (optional) ---
	var graphStore *graph.Store
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(ctx)
		graphStore = graph.New(driver, logger)
	}

	// --- Assessment rules ---
	rules := assess.DefaultRules()
	if cfg.RulesPath != "" {
		loaded, err := assess.LoadRules(cfg.RulesPath)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		rules = loaded
		logger.Info("loaded assessment rules", "path", cfg.RulesPath)
	}
	assessor := assess.New(rules, logger)

	// --- Recommender ---
	var enricher pathway.Enricher
	if graphStore != nil {
		enricher = graphStore
	}
	recommender := pathway.New(provider, backend, enricher, logger)

	// --- Metrics ---
	reg := metrics.New()

	a := &api{
		assessor:    assessor,
		recommender: recommender,
		index:       backend,
		mem:         memIndex,
		provider:    provider,
		graph:       graphStore,
		metrics:     reg,
		storePath:   cfg.StorePath,
		logger:      logger,
	}

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("POST /api/v1/assessment/assess", a.handleAssess)
	mux.HandleFunc("POST /api/v1/assessment/assess-batch", a.handleAssessBatch)
	mux.HandleFunc("POST /api/v1/recommendations/recommend", a.handleRecommend)
	mux.HandleFunc("POST /api/v1/recommendations/train", a.handleTrain)
	mux.HandleFunc("POST /api/v1/recommendations/related", a.handleRelated)
	mux.HandleFunc("POST /api/v1/recommendations/save", a.handleSave)
	mux.HandleFunc("POST /api/v1/recommendations/load", a.handleLoad)
	mux.HandleFunc("POST /api/v1/similarity/embed", a.handleEmbed)
	mux.HandleFunc("POST /api/v1/similarity/search", a.handleSearch)
	mux.HandleFunc("POST /api/v1/similarity/index", a.handleIndex)
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.OTel("pathways-api"),
		mid.Logger(logger),
		mid.Timing(),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "provider_fallback_only", provider.FallbackOnly())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}

	if memIndex != nil && cfg.StorePath != "" {
		if err := memIndex.SaveFile(cfg.StorePath); err != nil {
			logger.Error("persist index on shutdown", "err", err)
		} else {
			logger.Info("persisted index", "path", cfg.StorePath, "size", memIndex.Size())
		}
	}
	return nil
}
