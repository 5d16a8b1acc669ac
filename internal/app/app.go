// Package app собирает зависимости движка синхронизации для бинарников.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"manga-bookmark-bot/internal/adapters/repo"
	"manga-bookmark-bot/internal/adapters/scraper"
	"manga-bookmark-bot/internal/adapters/scraper/mangascans"
	"manga-bookmark-bot/internal/domain"
	"manga-bookmark-bot/internal/infra/config"
	"manga-bookmark-bot/internal/infra/db"
	"manga-bookmark-bot/internal/infra/lock"
	"manga-bookmark-bot/internal/infra/vault"
	"manga-bookmark-bot/internal/usecase/bookmarks"
	"manga-bookmark-bot/internal/usecase/credentials"
	"manga-bookmark-bot/internal/usecase/syncer"
)

// App содержит собранные сервисы.
type App struct {
	Pool        *pgxpool.Pool
	Repo        *repo.Postgres
	Redis       *redis.Client
	Locker      domain.AccountLocker
	Scrapers    *scraper.Registry
	Credentials *credentials.Service
	Bookmarks   *bookmarks.Service
	Syncer      *syncer.Orchestrator
	Websites    []domain.Website
}

// Build проверяет конфиг, подключается к БД, применяет схему и синхронизирует каталог сайтов.
// Любая ошибка здесь фатальна для бинарника.
func Build(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v, err := vault.New(cfg.CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("ключ шифрования: %w", err)
	}

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("подключение к БД: %w", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("миграция схемы: %w", err)
	}

	repoAdapter := repo.NewPostgres(pool)
	websites, err := repoAdapter.SyncWebsites(ctx, domain.Catalog)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("каталог сайтов: %w", err)
	}

	a := &App{Pool: pool, Repo: repoAdapter, Websites: websites}
	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("подключение к Redis: %w", err)
		}
		a.Locker = lock.NewRedis(a.Redis, cfg.LockTTL)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("блокировки аккаунтов через Redis")
	} else {
		a.Locker = lock.NewLocal()
		logger.Warn().Msg("REDIS_ADDR не задан, блокировки аккаунтов только в пределах процесса")
	}

	a.Scrapers = scraper.NewRegistry()
	a.Scrapers.Register(mangascans.WebsiteName, mangascans.New(0))
	for _, site := range websites {
		if !a.Scrapers.Supports(site.Name) {
			logger.Warn().Str("website", site.Name).Msg("для сайта нет адаптера")
		}
	}

	a.Credentials = credentials.NewService(repoAdapter, repoAdapter, v)
	a.Bookmarks = bookmarks.NewService(repoAdapter, cfg.Sync.RecentWindow)
	a.Syncer = syncer.New(
		repoAdapter,
		repoAdapter,
		a.Credentials,
		a.Scrapers,
		bookmarks.NewReconciler(repoAdapter),
		a.Locker,
		logger,
		syncer.Options{Concurrency: cfg.Sync.Concurrency, ScrapeTimeout: cfg.Sync.ScrapeTimeout},
	)
	return a, nil
}

// Close освобождает подключения.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
