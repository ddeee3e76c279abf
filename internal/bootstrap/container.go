package bootstrap

import (
	"context"
	"log"

	"ai-videochat-be/internal/config"
	"ai-videochat-be/internal/constant"
	"ai-videochat-be/internal/controller"
	"ai-videochat-be/internal/handler"
	"ai-videochat-be/internal/pkg/filestore"
	"ai-videochat-be/internal/pkg/logger"
	"ai-videochat-be/internal/pkg/ratelimit"
	"ai-videochat-be/internal/repository/memory"
	"ai-videochat-be/internal/repository/unitofwork"
	"ai-videochat-be/internal/service"
	"ai-videochat-be/internal/websocket"
	"ai-videochat-be/pkg/embedding"
	"ai-videochat-be/pkg/llm/factory"

	pktNats "ai-videochat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AuthController     controller.IAuthController
	ChatbotController  controller.IChatbotController
	AnalysisController controller.IAnalysisController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub

	// Shared infrastructure (health checks)
	DB    *gorm.DB
	Redis *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "gemini" {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GoogleGeminiKey, constant.EmbeddingDimension)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	} else {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
			constant.EmbeddingDimension,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	fileStore := filestore.NewRedisFileStore(
		rdb,
		cfg.Upload.ChunkSizeBytes,
		cfg.Upload.MaxFileSizeMB,
		cfg.Upload.CompressAboveMB,
		cfg.Upload.TTL,
	)
	loginLimiter := ratelimit.NewRedisLimiter(rdb, cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// In-memory transcript cache
	historyCache := memory.NewHistoryCache(cfg.Cache.HistoryTTL, cfg.Cache.CleanupInterval)

	// 5. Services
	publisherService := service.NewPublisherService(pubSub, cfg.App.EmbedRecordTopic)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.EmbedRecordTopic,
		uowFactory,
		embeddingProvider,
	)

	authService := service.NewAuthService(uowFactory, cfg, natsPub, loginLimiter)
	chatbotService := service.NewChatbotService(
		uowFactory,
		embeddingProvider,
		llmProvider,
		historyCache,
		publisherService,
		sysLogger,
	)
	analysisService := service.NewAnalysisService(
		uowFactory,
		fileStore,
		llmProvider,
		embeddingProvider,
		publisherService,
		natsPub,
		wsHub,
		sysLogger,
	)

	// 6. Controllers
	return &Container{
		AuthController:      controller.NewAuthController(authService),
		ChatbotController:   controller.NewChatbotController(chatbotService),
		AnalysisController:  controller.NewAnalysisController(analysisService),
		ConsumerService:     consumerService,
		NotificationHandler: handler.NewNotificationHandler(wsHub, sysLogger),
		WebSocketHub:        wsHub,
		DB:                  db,
		Redis:               rdb,
	}
}
