package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"
	"gorm.io/gorm"

	"github.com/green-credit-copilot/server/internal/core"
	"github.com/green-credit-copilot/server/internal/docparse"
	"github.com/green-credit-copilot/server/internal/documents"
	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/repo"
	"github.com/green-credit-copilot/server/internal/server"
	"github.com/green-credit-copilot/server/internal/store"
	"github.com/green-credit-copilot/server/internal/workflow"
	"github.com/green-credit-copilot/server/internal/workflow/graph"
	"github.com/green-credit-copilot/server/internal/workflow/graph/nodes"
	"github.com/green-credit-copilot/server/internal/workflow/graph/tools"
	"github.com/green-credit-copilot/server/pkg/cache"
	logx "github.com/green-credit-copilot/server/pkg/logger"
	pkgredis "github.com/green-credit-copilot/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	Redis      pkgredis.Config
	SQLitePath string `envconfig:"SQLITE_PATH" default:"data/copilot.db"`
	Cache      cache.Config
	SessionTTL string `envconfig:"SESSION_TTL" default:"720h"`

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Models and workflow
	Router   model.RouterModelConfig
	Expert   model.ExpertModelConfig
	Workflow model.WorkflowConfig

	// Knowledge base
	MilvusEnabled bool `envconfig:"MILVUS_ENABLED" default:"false"`
	Milvus        store.MilvusConfig
	Embedder      store.EmbedderConfig

	// Tools and documents
	Search    tools.SearchConfig
	Documents documents.Config

	// HTTP
	Server server.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env})

	// Stores
	rdb := cfg.Redis.MustNew()
	sessionTTL, err := time.ParseDuration(cfg.SessionTTL)
	if err != nil {
		sessionTTL = 30 * 24 * time.Hour
	}
	sessions := repo.NewRedisSessionRepository(rdb, sessionTTL)

	db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{})
	if err != nil {
		logx.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("failed to open sqlite database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logx.Fatal().Err(err).Msg("failed to migrate database")
	}
	configRepo := repo.NewGormConfigRepository(db)

	cacheSvc := cache.NewFromConfig(cfg.Cache)

	// Knowledge base: Milvus when configured, in-memory fallback otherwise.
	genaiClientCfg := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		genaiClientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	genaiClient, err := genai.NewClient(ctx, genaiClientCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to create Gemini client")
	}

	var kb store.VectorStore
	if cfg.MilvusEnabled {
		embedder := store.NewGeminiEmbedder(genaiClient, cfg.Embedder)
		milvus, err := store.NewMilvusStore(ctx, cfg.Milvus, embedder)
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to connect to Milvus")
		}
		kb = milvus
	} else {
		logx.Warn().Msg("Milvus disabled, using in-memory knowledge base")
		kb = store.NewMemoryStore()
	}

	// Services
	docs := documents.NewService(repo.NewGormDocumentRepository(db), docparse.New(), kb, cacheSvc, cfg.Documents)

	chatModels, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		RouterConfig: &cfg.Router,
		ExpertConfig: &cfg.Expert,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to create chat models")
	}

	registry := tools.NewRegistry(kb, cacheSvc, cfg.Search, cfg.Workflow.RetrievalTopK)
	runner, err := graph.BuildWorkflowGraph(ctx, &graph.GraphConfig{
		ChatModels:  chatModels,
		SessionRepo: sessions,
		Registry:    registry,
		Retriever:   kb,
		Workflow:    cfg.Workflow,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build workflow graph")
	}

	titler := workflow.NewTitleGenerator(chatModels.Router, sessions)
	optimizer := workflow.NewInputOptimizer(chatModels.Router)
	turns := workflow.NewService(runner, sessions, docs, configRepo, titler)

	srv := server.New(cfg.Server, env, turns, docs, sessions, configRepo, optimizer)
	if err := srv.Run(ctx); err != nil {
		logx.Fatal().Err(err).Msg("http server failed")
	}
	logx.Info().Msg("server stopped")
}
