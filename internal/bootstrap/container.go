package bootstrap

import (
	"context"
	"log"
	"time"

	"rag-agent-be/internal/config"
	"rag-agent-be/internal/controller"
	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/internal/repository/implementation"
	"rag-agent-be/internal/service"
	"rag-agent-be/pkg/core"
	"rag-agent-be/pkg/embedding"
	"rag-agent-be/pkg/events"
	"rag-agent-be/pkg/llm/factory"
	"rag-agent-be/pkg/rag/expand"
	"rag-agent-be/pkg/rag/filter"
	"rag-agent-be/pkg/rag/hybrid"
	"rag-agent-be/pkg/rag/memory"
	"rag-agent-be/pkg/rag/response"
	"rag-agent-be/pkg/rag/router"
	"rag-agent-be/pkg/rag/search"
	ragstate "rag-agent-be/pkg/rag/state"
	"rag-agent-be/pkg/rag/stream"
	"rag-agent-be/pkg/retrieval"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController   controller.IChatController
	HealthController controller.IHealthController

	// Background Services (Exposed for main.go to run)
	PersistenceService service.IPersistenceService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	embeddingProvider := embedding.NewOllamaProvider(
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.EmbeddingModel,
	)
	log.Printf("[INFO] Using Embedding Model: %s", cfg.Ai.EmbeddingModel)

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.GeminiAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 3.5 Infrastructure
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.Redis.URL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	coreClient := core.NewClient(cfg.Core.BaseURL, sysLogger)

	// 4. Retrieval pipeline
	documentRepo := implementation.NewDocumentRepository(db)
	checkpointRepo := implementation.NewCheckpointRepository(db)

	vectorClient := retrieval.NewVectorClient(embeddingProvider, documentRepo)
	lexicalClient := retrieval.NewLexicalClient(documentRepo)
	merger := hybrid.NewMerger(cfg.Agent.HybridAlpha)
	searcher := hybrid.NewSearcher(vectorClient, lexicalClient, merger, cfg.Agent.OversampleMultiplier, sysLogger)
	retrievalStage := search.NewStage(searcher, cfg.Agent.RetrievalK, sysLogger)

	// 5. Turn components
	queryRouter := router.NewRouter(llmProvider, cfg.Ai.RouterModel, sysLogger)
	queryExpander := expand.NewExpander(llmProvider, cfg.Ai.LLMModel, sysLogger)
	relevanceFilter := filter.NewFilter(llmProvider, cfg.Ai.FilterModel, sysLogger)
	generator := response.NewGenerator(llmProvider, cfg.Ai.LLMModel, sysLogger)
	memoryManager := memory.NewManager(llmProvider, cfg.Ai.SummaryModel, sysLogger)

	checkpoints := ragstate.NewCheckpointStore(checkpointRepo)
	flags := ragstate.NewFlagStore(
		rdb,
		time.Duration(cfg.Agent.GuardTTLSeconds)*time.Second,
		time.Duration(cfg.Agent.StopTTLSeconds)*time.Second,
		sysLogger,
	)

	publisher := events.NewPublisher(pubSub)

	orchestrator := stream.NewOrchestrator(
		queryRouter,
		queryExpander,
		retrievalStage,
		relevanceFilter,
		generator,
		memoryManager,
		checkpoints,
		flags,
		coreClient,
		publisher,
		stream.Config{
			WindowSize:         cfg.Agent.ContextWindowSize,
			SummarizeThreshold: cfg.Agent.SummarizeThreshold,
			KeepSize:           cfg.Agent.KeepSize,
		},
		sysLogger,
	)

	// 6. Services
	chatService := service.NewChatService(orchestrator, flags, sysLogger)

	persistenceLogger := logger.NewIsolatedLogger("logs/persistence.log")
	persistenceService := service.NewPersistenceService(
		pubSub,
		events.TurnCompletedTopic,
		coreClient,
		persistenceLogger,
	)

	// 7. Controllers
	return &Container{
		ChatController:   controller.NewChatController(chatService, sysLogger),
		HealthController: controller.NewHealthController(db, flags),

		PersistenceService: persistenceService,

		Logger: sysLogger,
	}
}
