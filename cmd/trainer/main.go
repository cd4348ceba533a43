// Command trainer consumes pathway training jobs from NATS and rebuilds the
// recommendation corpus: each job replaces the vector index contents, updates
// the articulation graph when Neo4j is configured, and persists the index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/PathwaysAI/pathways-mvp/engine/domain"
	"github.com/PathwaysAI/pathways-mvp/engine/embedding"
	"github.com/PathwaysAI/pathways-mvp/engine/graph"
	"github.com/PathwaysAI/pathways-mvp/engine/pathway"
	"github.com/PathwaysAI/pathways-mvp/engine/vecindex"
	"github.com/PathwaysAI/pathways-mvp/engine/vecindex/qdrant"
	"github.com/PathwaysAI/pathways-mvp/pkg/metrics"
	"github.com/PathwaysAI/pathways-mvp/pkg/natsutil"
)

const (
	trainSubject = "pathways.train"
	trainQueue   = "trainers"
)

// Config holds all environment-based configuration.
type Config struct {
	NatsURL       string
	EmbedProvider string
	OllamaURL     string
	OllamaModel   string
	OllamaDim     int
	OllamaRPS     float64
	StorePath     string
	VectorBackend string // "memory" or "qdrant"
	QdrantAddr    string
	QdrantColl    string
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPass     string
	MetricsPort   string
}

func loadConfig() Config {
	return Config{
		NatsURL:       envOr("NATS_URL", nats.DefaultURL),
		EmbedProvider: envOr("EMBED_PROVIDER", "fallback"),
		OllamaURL:     envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   envOr("OLLAMA_MODEL", "nomic-embed-text"),
		OllamaDim:     envIntOr("OLLAMA_DIM", 768),
		OllamaRPS:     envFloatOr("OLLAMA_RPS", 10),
		StorePath:     envOr("STORE_PATH", ""),
		VectorBackend: envOr("VECTOR_BACKEND", "memory"),
		QdrantAddr:    envOr("QDRANT_ADDR", "localhost:6334"),
		QdrantColl:    envOr("QDRANT_COLLECTION", "pathways"),
		Neo4jURL:      envOr("NEO4J_URL", ""),
		Neo4jUser:     envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     envOr("NEO4J_PASS", "password"),
		MetricsPort:   envOr("METRICS_PORT", "9091"),
	}
}

// TrainJob is the JSON payload published to the training subject.
type TrainJob struct {
	Examples []domain.TrainingExample `json:"examples"`
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("trainer exited with error", "err", err)
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

	// --- Vector backend ---
	var backend pathway.Index
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
			if err := index.LoadFile(cfg.StorePath); err == nil {
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

	recommender := pathway.New(provider, backend, nil, logger)

	// --- Metrics ---
	reg := metrics.New()
	jobsTotal := reg.Counter("train_jobs_total", "Training jobs processed.")
	jobErrors := reg.Counter("train_job_errors_total", "Training jobs that failed.")
	indexSize := reg.Gauge("index_size", "Records in the vector index.")
	jobDur := reg.Histogram("train_job_duration_seconds", "Per-job training time.", nil)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", reg.Handler())
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", "err", err)
		}
	}()

	// --- NATS ---
	nc, err := nats.Connect(cfg.NatsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	// Jobs replace the whole corpus, so they must not interleave.
	var trainMu sync.Mutex

	sub, err := natsutil.QueueSubscribe(nc, trainSubject, trainQueue, func(jobCtx context.Context, job TrainJob) {
		trainMu.Lock()
		defer trainMu.Unlock()

		start := time.Now()
		jobsTotal.Inc()
		logger.Info("training job received", "examples", len(job.Examples))

		for _, ex := range job.Examples {
			if err := domain.ValidateExample(ex); err != nil {
				logger.Error("invalid training example, dropping job", "err", err)
				jobErrors.Inc()
				return
			}
		}

		if err := recommender.Train(jobCtx, job.Examples); err != nil {
			logger.Error("training failed", "err", err)
			jobErrors.Inc()
			return
		}
		if graphStore != nil {
			if err := graphStore.ImportExamples(jobCtx, job.Examples); err != nil {
				logger.Error("graph import failed", "err", err)
			}
		}
		if memIndex != nil && cfg.StorePath != "" {
			if err := memIndex.SaveFile(cfg.StorePath); err != nil {
				logger.Error("persist index", "err", err)
			}
		}

		indexSize.Set(int64(backend.Size()))
		jobDur.Since(start)
		logger.Info("training job done", "indexed", backend.Size(), "took", time.Since(start).String())
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	logger.Info("trainer listening", "subject", trainSubject, "queue", trainQueue)
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Let an in-flight job finish before tearing down.
	trainMu.Lock()
	logger.Info("in-flight work drained")
	trainMu.Unlock()

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return metricsSrv.Shutdown(shutCtx)
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
