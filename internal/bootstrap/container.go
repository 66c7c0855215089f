package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"gemini-rag-be/internal/config"
	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/controller"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/pkg/serverutils"
	"gemini-rag-be/internal/repository/contract"
	"gemini-rag-be/internal/repository/implementation"
	"gemini-rag-be/internal/repository/memory"
	"gemini-rag-be/internal/repository/redisstore"
	"gemini-rag-be/internal/service"
	"gemini-rag-be/pkg/chatbot"
	"gemini-rag-be/pkg/filestore"
	"gemini-rag-be/pkg/retry"

	pktNats "gemini-rag-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	SearchController   controller.ISearchController
	SessionController  controller.ISessionController
	HealthController   controller.IHealthController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	SessionService  service.ISessionService

	Logger logger.ILogger

	closers []func()
}

func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	eventLogger := logger.NewIsolatedLogger(cfg.App.EventLogFilePath)
	c := &Container{Logger: sysLogger}

	ledger, err := implementation.NewLedgerRepository(cfg.Ledger, !cfg.IsProduction(), sysLogger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	sessionRepo, err := c.newSessionRepository(cfg, sysLogger)
	if err != nil {
		return nil, err
	}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// NATS bridge is optional
	var forwarder service.EventForwarder
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			forwarder = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// 3. Remote store
	gateway := filestore.NewGeminiGateway(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, nil)
	querier := chatbot.NewGeminiQuerier(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model, nil)

	// 4. Services
	publisherService := service.NewPublisherService(cfg.Events.DocumentTopic, pubSub)
	documentService := service.NewDocumentService(
		gateway,
		ledger,
		publisherService,
		cfg.Gemini.StoreName,
		retry.Policy{
			Interval:    cfg.Poll.Interval,
			Multiplier:  cfg.Poll.Multiplier,
			MaxInterval: cfg.Poll.MaxInterval,
			MaxAttempts: cfg.Poll.MaxAttempts,
		},
		sysLogger,
	)
	c.ConsumerService = service.NewConsumerService(
		pubSub,
		cfg.Events.DocumentTopic,
		documentService,
		forwarder,
		eventLogger,
	)
	searchService := service.NewSearchService(gateway, querier, sessionRepo, cfg.Gemini.StoreName, sysLogger)
	c.SessionService = service.NewSessionService(sessionRepo, sysLogger)

	// 5. Controllers
	guard := serverutils.NewJwtMiddleware(cfg.App.JwtSecret)
	c.DocumentController = controller.NewDocumentController(documentService, cfg.App.UploadDir, guard, sysLogger)
	c.SearchController = controller.NewSearchController(searchService)
	c.SessionController = controller.NewSessionController(c.SessionService)
	c.HealthController = controller.NewHealthController(time.Now(), cfg.App.ServerHost, cfg.App.Version)

	sysLogger.Info(constant.LogModuleHTTP, "Container ready", map[string]interface{}{
		"store":           cfg.Gemini.StoreName,
		"model":           cfg.Gemini.Model,
		"session_backend": cfg.Session.Backend,
		"nats":            forwarder != nil,
	})

	return c, nil
}

func (c *Container) newSessionRepository(cfg *config.Config, log logger.ILogger) (contract.ISessionRepository, error) {
	switch cfg.Session.Backend {
	case "", "memory":
		return memory.NewSessionRepository(cfg.Session.MaxPairs, cfg.Session.Timeout, cfg.Session.SweepInterval, log), nil
	case "redis":
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn(constant.LogModuleSession, "Redis not reachable yet", map[string]interface{}{"error": err.Error()})
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		return redisstore.NewSessionRepository(rdb, cfg.Session.MaxPairs, cfg.Session.Timeout, log), nil
	}
	return nil, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.Session.Backend)
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
