package domain

import (
	"context"
	"time"
)

// UserRepo управляет пользователями.
type UserRepo interface {
	UpsertUser(ctx context.Context, chatID int64) (User, bool, error)
	GetUser(ctx context.Context, chatID int64) (User, error)
	SetActive(ctx context.Context, chatID int64, active bool) error
	SetNotificationTime(ctx context.Context, chatID int64, value *string) error
	TouchLastUpdate(ctx context.Context, chatID int64, at time.Time) error
	ListActiveUsersWithAccounts(ctx context.Context) ([]User, error)
}

// WebsiteRepo управляет каталогом сайтов.
type WebsiteRepo interface {
	SyncWebsites(ctx context.Context, catalog []Website) ([]Website, error)
	ListWebsites(ctx context.Context) ([]Website, error)
	GetWebsite(ctx context.Context, websiteID int64) (Website, error)
	GetWebsiteByName(ctx context.Context, name string) (Website, error)
}

// AccountRepo хранит аккаунты пользователей на сайтах.
type AccountRepo interface {
	// UpsertAccount атомарно создаёт или перезаписывает аккаунт пары (chat_id, website_id).
	UpsertAccount(ctx context.Context, chatID, websiteID int64, login, password string) (Account, bool, error)
	ListAccounts(ctx context.Context, chatID int64) ([]Account, error)
}

// BookmarkWriter доступен только внутри транзакции аккаунта.
type BookmarkWriter interface {
	// UpsertBookmark вставляет закладку или перезаписывает существующую с тем же заголовком.
	UpsertBookmark(ctx context.Context, b Bookmark) (id int64, inserted bool, err error)
}

// BookmarkRepo хранит закладки.
type BookmarkRepo interface {
	// WithAccountTx выполняет fn в одной транзакции: все записи аккаунта фиксируются, либо ни одна.
	WithAccountTx(ctx context.Context, accountID int64, fn func(w BookmarkWriter) error) error
	ListBookmarks(ctx context.Context, chatID int64, websiteID *int64) ([]Bookmark, error)
}

// Scraper описывает адаптер сайта. Ошибки возвращаются как *ScrapeFailure.
type Scraper interface {
	Scrape(ctx context.Context, website Website, creds Credentials) ([]RawBookmark, error)
}

// Vault шифрует учётные данные в покое.
type Vault interface {
	Encrypt(plain Secret) (string, error)
	Decrypt(ciphertext string) (Secret, error)
}

// AccountLocker не допускает одновременной синхронизации одного аккаунта.
type AccountLocker interface {
	// TryLock захватывает аккаунт без ожидания. Если он занят, возвращает ErrAccountBusy.
	TryLock(ctx context.Context, accountID int64) (unlock func(), err error)
}

// Notifier доставляет пользователю свежие обновления закладок.
type Notifier interface {
	NotifyRecent(ctx context.Context, chatID int64, bookmarks []Bookmark) error
}
