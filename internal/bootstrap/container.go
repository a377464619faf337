package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"ollama-chat-be/internal/config"
	"ollama-chat-be/internal/controller"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/repository/contract"
	"ollama-chat-be/internal/repository/implementation"
	"ollama-chat-be/internal/repository/memory"
	"ollama-chat-be/internal/service"
	"ollama-chat-be/pkg/download"
	"ollama-chat-be/pkg/events"
	"ollama-chat-be/pkg/llm/factory"

	pktNats "ollama-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	SessionController   controller.ISessionController
	ChatController      controller.IChatController
	CharacterController controller.ICharacterController
	ModelController     controller.IModelController
	DownloadController  controller.IDownloadController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	JanitorService  service.IJanitorService

	Supervisor *download.Supervisor
	Logger     logger.ILogger

	closers []func()
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	eventLogger := logger.NewIsolatedLogger(cfg.App.DownloadLogPath)

	c := &Container{Logger: sysLogger}
	c.closers = append(c.closers, func() {
		_ = eventLogger.Sync()
	})

	// 2. Event Bus
	bus := events.NewBus(events.DefaultTopic, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() {
		_ = bus.Close()
	})

	// 3. Infrastructure (optional; the service runs without either)
	var forwarder events.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			forwarder = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	var mirror contract.JobSnapshotRepository
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if _, err := rdb.Ping(pingCtx).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
			_ = rdb.Close()
		} else {
			mirror = implementation.NewJobSnapshotRepository(rdb, cfg.Download.Retention)
			c.closers = append(c.closers, func() {
				_ = rdb.Close()
			})
		}
		cancel()
	}

	// 4. Model backend
	backend, err := factory.NewBackend("ollama", cfg.Ai.DefaultChatModel, cfg.Ai.OllamaBaseURL, cfg.Ai.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("init model backend: %w", err)
	}
	log.Printf("[INFO] Using Ollama at %s", cfg.Ai.OllamaBaseURL)

	// 5. Repositories
	sessionRepo := memory.NewSessionRepository(cfg.Session.MaxSessions, cfg.Session.EvictBatch, cfg.Session.IdleTTL)
	characterRepo := implementation.NewCharacterRepository(cfg.Characters.FilePath)
	if _, err := characterRepo.Load(ctx); err != nil {
		return nil, fmt.Errorf("load characters: %w", err)
	}

	// 6. Services
	supervisor := download.NewSupervisor(
		download.NewExecRunner(cfg.Ai.PullBinary),
		download.WithRetention(cfg.Download.Retention),
		download.WithStrictNames(cfg.Download.StrictNames),
		download.WithPublisher(bus),
		download.WithLogger(sysLogger),
	)
	c.Supervisor = supervisor

	modelService := service.NewModelService(
		backend,
		cfg.Ai.ModelCacheTTL,
		cfg.Ai.DefaultChatModel,
		cfg.Ai.DefaultCaptionModel,
		sysLogger,
	)
	conversationService := service.NewConversationService(
		sessionRepo,
		characterRepo,
		backend,
		modelService,
		bus,
		sysLogger,
		service.ConversationConfig{
			DefaultChatModel:    cfg.Ai.DefaultChatModel,
			DefaultCaptionModel: cfg.Ai.DefaultCaptionModel,
			RequestTimeout:      cfg.Ai.RequestTimeout,
			Temperature:         cfg.Ai.Temperature,
			MaxTokens:           cfg.Ai.MaxTokens,
		},
	)
	characterService := service.NewCharacterService(characterRepo, conversationService, bus, sysLogger)
	downloadService := service.NewDownloadService(supervisor, mirror, sysLogger)

	c.ConsumerService = service.NewConsumerService(bus, eventLogger, forwarder, mirror, downloadService, modelService)
	c.JanitorService = service.NewJanitorService(sessionRepo, downloadService, bus, cfg.Session.JanitorInterval, sysLogger)

	// 7. Controllers
	c.SessionController = controller.NewSessionController(conversationService, characterService, modelService)
	c.ChatController = controller.NewChatController(conversationService, cfg.App.UploadDir)
	c.CharacterController = controller.NewCharacterController(characterService)
	c.ModelController = controller.NewModelController(modelService)
	c.DownloadController = controller.NewDownloadController(downloadService)

	return c, nil
}

// Close releases infrastructure in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
