package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"findash/internal/ai"
	appsvc "findash/internal/app"
	"findash/internal/cache"
	"findash/internal/config"
	"findash/internal/doccontext"
	"findash/internal/logging"
	"findash/internal/model"
	mysqlClient "findash/internal/platform/mysql"
	"findash/internal/platform/objectstore"
	rabbitmqClient "findash/internal/platform/rabbitmq"
	redisClient "findash/internal/platform/redis"
	sqliteClient "findash/internal/platform/sqlite"
	"findash/internal/repository"
	"findash/internal/worker"
)

type Services struct {
	Auth          *appsvc.AuthService
	Chat          *appsvc.ChatService
	Conversations *appsvc.ConversationService
}

type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB
	// Redis, MQConn and Objects are nil when their section is not configured.
	Redis         *redis.Client
	MQConn        *amqp.Connection
	Objects       *objectstore.MinIOStore
	Publisher     *rabbitmqClient.MessagePublisher
	MessageWorker *worker.MessagePersistWorker
	Services      Services

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	if err := a.connect(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.wire()
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	a.DB = db
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	if cfg.Redis.Addr != "" {
		a.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
	} else {
		a.Logger.Warn("redis disabled, caches are off")
	}

	if cfg.RabbitMQ.URL != "" {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.Publisher = rabbitmqClient.NewMessagePublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue)
		a.MessageWorker = worker.NewMessagePersistWorker(
			a.MQConn,
			repository.NewMessageRepository(db),
			cfg.RabbitMQ.MessagePersistQueue,
			a.Logger.Named("worker"),
		)
		if err := a.MessageWorker.Start(ctx); err != nil {
			return fmt.Errorf("start message worker failed: %w", err)
		}
	} else {
		a.Logger.Warn("rabbitmq disabled, messages are written inline")
	}

	if cfg.Storage.Endpoint != "" {
		a.Objects, err = objectstore.New(ctx,
			cfg.Storage.Endpoint,
			cfg.Storage.AccessKey,
			cfg.Storage.SecretKey,
			cfg.Storage.Bucket,
			cfg.Storage.Secure,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	switch strings.ToLower(cfg.Database.Driver) {
	case "sqlite", "sqlite3":
		return sqliteClient.New(ctx, cfg.Database.SQLitePath)
	default:
		return mysqlClient.New(ctx, cfg.MySQLDSN())
	}
}

func (a *App) wire() {
	cfg := a.Config
	logger := a.Logger

	userRepo := repository.NewUserRepository(a.DB)
	conversationRepo := repository.NewConversationRepository(a.DB)
	fileRepo := repository.NewFileRepository(a.DB)
	messageRepo := repository.NewMessageRepository(a.DB)

	var (
		fileIndex    appsvc.FileIndexCache
		historyCache appsvc.HistoryCache
		publisher    appsvc.AsyncMessagePublisher = appsvc.NewInlineMessageWriter(messageRepo)
		blobs        appsvc.BlobStore
	)
	if a.Redis != nil {
		fileIndex = cache.NewFileIndexCache(a.Redis, seconds(cfg.Redis.FileIndexTTLSeconds))
		historyCache = cache.NewHistoryCache(a.Redis,
			seconds(cfg.Redis.HistoryTTLSeconds),
			seconds(cfg.Redis.HistoryDirtyTTLSeconds),
		)
	}
	if a.Publisher != nil {
		publisher = a.Publisher
	}
	if a.Objects != nil {
		blobs = a.Objects
	}

	lookup := appsvc.NewFileLookup(fileRepo, fileIndex, logger)
	assembler := doccontext.NewAssembler(logger.Named("doccontext"),
		doccontext.NewStandardStrategy(lookup),
		doccontext.NewDirectStrategy(repository.NewDirectFileStore(a.DB), logger.Named("doccontext")),
	)

	a.Services = Services{
		Auth: appsvc.NewAuthService(
			userRepo,
			cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
		),
		Chat: appsvc.NewChatService(appsvc.ChatDeps{
			Conversations: conversationRepo,
			Messages:      messageRepo,
			Assembler:     assembler,
			Verifier:      doccontext.NewVerifier(cfg.LLM.SystemMessageLimit, logger.Named("doccontext")),
			LLM:           ai.NewOpenAICompatibleClient(seconds(cfg.LLM.TimeoutSeconds)),
			Publisher:     publisher,
			HistoryCache:  historyCache,
			Logger:        logger.Named("chat"),
		}, appsvc.ChatSettings{
			LLM: ai.ChatConfig{
				BaseURL: cfg.LLM.BaseURL,
				APIKey:  cfg.LLM.APIKey,
				Model:   cfg.LLM.Model,
			},
			SystemPrompt: cfg.LLM.SystemPrompt,
			MaxContext:   cfg.LLM.MaxContextMessage,
		}),
		Conversations: appsvc.NewConversationService(appsvc.ConversationDeps{
			Conversations: conversationRepo,
			Files:         fileRepo,
			Messages:      messageRepo,
			FileLookup:    lookup,
			HistoryCache:  historyCache,
			Blobs:         blobs,
			MaxUploadSize: cfg.Upload.MaxBytes,
			Logger:        logger.Named("conversation"),
		}),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Close releases everything New opened, in reverse dependency order, and reports every
// failure.
func (a *App) Close() error {
	var result *multierror.Error
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close publisher: %w", err))
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close rabbitmq: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("close database: %w", err))
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return result.ErrorOrNil()
}
