package app

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/config"
	"github.com/Freeeeeet/timetutor/internal/docstore"
	"github.com/Freeeeeet/timetutor/internal/notify"
	"github.com/Freeeeeet/timetutor/internal/repository"
	"github.com/Freeeeeet/timetutor/internal/service"
	"github.com/Freeeeeet/timetutor/migrations"
)

const pingTimeout = 5 * time.Second

// App собранные зависимости процесса
type App struct {
	Store docstore.Store

	Users         *service.UserService
	Lessons       *service.LessonService
	Invoices      *service.InvoiceService
	Categories    *service.CategoryService
	Notifications *service.NotificationService
	Purge         *service.PurgeService

	dispatcher *notify.Dispatcher
	pool       *pgxpool.Pool
	redis      *redis.Client
	logger     *zap.Logger
}

// New открывает хранилище и внешние клиенты и собирает сервисы
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store

	users := repository.NewUserRepository(store)
	lessons := repository.NewLessonRepository(store)
	categories := repository.NewCategoryRepository(store)
	invoices := repository.NewInvoiceRepository(store)
	notifications := repository.NewNotificationRepository(store)

	var rates repository.RateLookup = categories
	if cfg.RedisAddr != "" {
		client, err := a.openRedis(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		rates = repository.NewRateCache(categories, client, cfg.RateCacheTTL, logger)
	}

	var channels []notify.Channel
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
		channels = append(channels, notify.NewTelegramChannel(b, users))
		logger.Info("Telegram notifications enabled")
	}
	a.dispatcher = notify.NewDispatcher(notifications, cfg.NotificationTTL, logger.Named("notify"), channels...)

	a.Users = service.NewUserService(users, logger)
	a.Lessons = service.NewLessonService(lessons, users, categories, a.dispatcher, logger)
	a.Invoices = service.NewInvoiceService(invoices, lessons, users, rates, a.dispatcher, logger)
	a.Categories = service.NewCategoryService(categories, rates, logger)
	a.Notifications = service.NewNotificationService(notifications, logger)
	a.Purge = service.NewPurgeService(notifications, cfg.PurgeBatchSize, cfg.PurgeMaxBatches, logger.Named("purge"))

	return a, nil
}

// openStore выбирает хранилище: память для локальной разработки или PostgreSQL
func (a *App) openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		a.logger.Warn("Using in-memory store, data is lost on restart")
		return docstore.NewMemoryStore(), nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DB_DSN: %w", err)
	}
	pool, err := openPostgres(ctx, poolCfg, migrations.FS, a.logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool

	return docstore.NewPostgresStore(pool), nil
}

// openPostgres подключается, проверяет соединение и применяет миграции.
// При ошибке пул закрывается
func openPostgres(ctx context.Context, poolCfg *pgxpool.Config, fsys fs.FS, logger *zap.Logger) (_ *pgxpool.Pool, err error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	defer func() {
		if err != nil {
			pool.Close()
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Connected to database")

	migrator, err := NewMigrator(pool, fsys, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	if err := migrator.Run(ctx); err != nil {
		return nil, err
	}
	return pool, nil
}

func (a *App) openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	a.redis = client
	a.logger.Info("Rate cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	return client, nil
}

// Close дожидается фоновых уведомлений и закрывает соединения
func (a *App) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Wait()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
