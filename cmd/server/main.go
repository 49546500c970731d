package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/internal/app/policies"
	authsvc "parley/internal/app/services/auth"
	chatsvc "parley/internal/app/services/chat"
	domainauth "parley/internal/domain/auth"
	domainchat "parley/internal/domain/chat"
	domainuser "parley/internal/domain/user"
	"parley/internal/infra/broker/kafka"
	busmemory "parley/internal/infra/bus/memory"
	busredis "parley/internal/infra/bus/redis"
	"parley/internal/infra/config"
	mongodb "parley/internal/infra/db/mongo"
	"parley/internal/infra/db/scylla"
	ginserver "parley/internal/infra/http/gin"
	"parley/internal/infra/obs"
	"parley/internal/infra/realtime"
	"parley/internal/infra/security"
	"parley/internal/infra/storage/memory"
	"parley/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger := obs.NewLogger("dev")
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer deps.close(logger)

	hub := realtime.NewHub(logger)
	defer hub.Close()

	publisher, err := buildPublisher(ctx, cfg, logger, hub, deps)
	if err != nil {
		logger.Error("bus init failed", "error", err)
		os.Exit(1)
	}

	authService := &authsvc.Service{
		Users:      deps.users,
		Sessions:   deps.sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	chatService := &chatsvc.Service{
		Store:  deps.chat,
		Users:  deps.users,
		Bus:    publisher,
		Logger: logger,
	}

	handlers := ginserver.Handlers{
		Auth:  ginserver.AuthHandler{Service: authService, Logger: logger},
		Users: ginserver.UserHandler{Users: deps.users, Logger: logger},
		Chat:  ginserver.ChatHandler{Chat: chatService, Logger: logger},
		Realtime: ginserver.WSHandler{
			Hub:      hub,
			Chat:     chatService,
			Logger:   logger,
			Upgrader: ginserver.NewUpgrader(),
		},
		AuthMiddleware: ginserver.AuthMiddleware{Resolver: authService, Logger: logger}.Handle,
	}
	if deps.uploader != nil {
		handlers.Attachments = ginserver.AttachmentHandler{Uploader: deps.uploader, Logger: logger}
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: deps.ready,
	}, handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "env", cfg.Env, "store", cfg.StoreBackend, "bus", cfg.BusBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type dependencies struct {
	users    domainuser.Repository
	sessions domainauth.SessionStore
	chat     domainchat.Store
	uploader s3.Uploader

	mongoClient *mongodb.Client
	redisBus    *busredis.Bus
	producer    *kafka.Producer
	ready       func() error
}

func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{
		users:    memory.NewUserRepository(),
		sessions: memory.NewSessionStore(),
		chat:     memory.NewChatStore(),
	}

	if cfg.MongoURI != "" {
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		deps.mongoClient = client
		deps.ready = func() error { return client.Ping(context.Background()) }

		users := mongodb.NewUserRepository(client.DB)
		sessions := mongodb.NewSessionStore(client.DB)
		if err := users.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		if err := sessions.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		deps.users = users
		deps.sessions = sessions
		logger.Info("mongo connected", "db", cfg.MongoDB)
	}

	switch cfg.StoreBackend {
	case config.StoreMongo:
		store := mongodb.NewChatStore(deps.mongoClient.DB)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		deps.chat = store
	case config.StoreScylla:
		session, err := scylla.NewSession(cfg, logger)
		if err != nil {
			return nil, err
		}
		deps.chat = scylla.NewChatStore(session, logger)
	case config.StoreMemory:
		logger.Warn("using in-memory chat store; data is not durable")
	}

	if cfg.S3Endpoint != "" {
		uploader, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger)
		if err != nil {
			return nil, err
		}
		deps.uploader = uploader
	}
	return deps, nil
}

// buildPublisher assembles the channel bus: local hub delivery or Redis
// fan-out, optionally mirrored to Kafka for a durable event trail.
func buildPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger, hub *realtime.Hub, deps *dependencies) (policies.Publisher, error) {
	var publisher policies.Publisher
	switch cfg.BusBackend {
	case config.BusRedis:
		redisBus, err := busredis.NewBus(cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		deps.redisBus = redisBus
		go func() {
			if err := redisBus.Subscribe(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("redis subscription ended", "error", err)
			}
		}()
		publisher = redisBus
	default:
		memoryBus := busmemory.NewBus()
		memoryBus.Attach(hub)
		publisher = memoryBus
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, err
		}
		deps.producer = producer
		publisher = kafka.Mirror{
			Inner:    publisher,
			Producer: producer,
			Topic:    cfg.KafkaTopicPrefix + "chat-events",
			Logger:   logger,
		}
		logger.Info("kafka event mirror enabled", "brokers", cfg.KafkaBrokers)
	}
	return publisher, nil
}

func (d *dependencies) close(logger *slog.Logger) {
	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			logger.Warn("kafka close failed", "error", err)
		}
	}
	if d.redisBus != nil {
		if err := d.redisBus.Close(); err != nil {
			logger.Warn("redis close failed", "error", err)
		}
	}
	if d.mongoClient != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.mongoClient.Close(shutdownCtx); err != nil {
			logger.Warn("mongo close failed", "error", err)
		}
	}
}
