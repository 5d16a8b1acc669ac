package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"manga-bookmark-bot/internal/domain"
	"manga-bookmark-bot/internal/infra/metrics"
)

// defaultTxTimeout ограничивает транзакцию сверки одного аккаунта.
const defaultTxTimeout = 30 * time.Second

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
}

var (
	_ domain.UserRepo     = (*Postgres)(nil)
	_ domain.WebsiteRepo  = (*Postgres)(nil)
	_ domain.AccountRepo  = (*Postgres)(nil)
	_ domain.BookmarkRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, txTimeout: defaultTxTimeout}
}

// Ping проверяет соединение с БД.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

const userColumns = `chat_id, notification_time, is_active, last_update`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user       domain.User
		notifyTime sql.NullString
		lastUpdate sql.NullTime
	)
	if err := row.Scan(&user.ChatID, &notifyTime, &user.IsActive, &lastUpdate); err != nil {
		return domain.User{}, err
	}
	if notifyTime.Valid {
		value := notifyTime.String
		user.NotificationTime = &value
	}
	if lastUpdate.Valid {
		ts := lastUpdate.Time
		user.LastUpdate = &ts
	}
	return user, nil
}

// UpsertUser создаёт пользователя или заново активирует существующего.
func (p *Postgres) UpsertUser(ctx context.Context, chatID int64) (domain.User, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO users (chat_id, is_active) VALUES ($1, TRUE)
ON CONFLICT (chat_id) DO UPDATE SET is_active = TRUE
RETURNING `+userColumns+`, (xmax = 0) AS inserted
`, chatID)
	var (
		user       domain.User
		notifyTime sql.NullString
		lastUpdate sql.NullTime
		created    bool
	)
	err := row.Scan(&user.ChatID, &notifyTime, &user.IsActive, &lastUpdate, &created)
	metrics.ObserveNetworkRequest("postgres", "users_upsert", "users", start, err)
	if err != nil {
		return domain.User{}, false, err
	}
	if notifyTime.Valid {
		value := notifyTime.String
		user.NotificationTime = &value
	}
	if lastUpdate.Valid {
		ts := lastUpdate.Time
		user.LastUpdate = &ts
	}
	return user, created, nil
}

// GetUser возвращает пользователя по chat_id.
func (p *Postgres) GetUser(ctx context.Context, chatID int64) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	user, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE chat_id=$1`, chatID))
	metrics.ObserveNetworkRequest("postgres", "users_get", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, err
}

// SetActive включает или выключает уведомления пользователя.
func (p *Postgres) SetActive(ctx context.Context, chatID int64, active bool) error {
	return p.updateUser(ctx, "users_set_active", `UPDATE users SET is_active=$2 WHERE chat_id=$1`, chatID, active)
}

// SetNotificationTime сохраняет время уведомлений. nil сбрасывает значение.
func (p *Postgres) SetNotificationTime(ctx context.Context, chatID int64, value *string) error {
	return p.updateUser(ctx, "users_set_notification_time", `UPDATE users SET notification_time=$2 WHERE chat_id=$1`, chatID, value)
}

// TouchLastUpdate фиксирует время последней успешной синхронизации.
func (p *Postgres) TouchLastUpdate(ctx context.Context, chatID int64, at time.Time) error {
	return p.updateUser(ctx, "users_touch_last_update", `UPDATE users SET last_update=$2 WHERE chat_id=$1`, chatID, at.UTC())
}

func (p *Postgres) updateUser(ctx context.Context, op, query string, chatID int64, value any) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, query, chatID, value)
	metrics.ObserveNetworkRequest("postgres", op, "users", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ListActiveUsersWithAccounts возвращает активных пользователей, у которых есть хотя бы один аккаунт.
func (p *Postgres) ListActiveUsersWithAccounts(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+userColumns+` FROM users u
WHERE u.is_active AND EXISTS (SELECT 1 FROM user_websites uw WHERE uw.chat_id = u.chat_id)
ORDER BY u.chat_id
`)
	metrics.ObserveNetworkRequest("postgres", "users_list_active", "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SyncWebsites синхронизирует встроенный каталог сайтов по имени.
func (p *Postgres) SyncWebsites(ctx context.Context, catalog []domain.Website) ([]domain.Website, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "websites", start, err)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := make([]domain.Website, 0, len(catalog))
	for _, site := range catalog {
		saved := domain.Website{}
		start = time.Now()
		err = tx.QueryRow(ctx, `
INSERT INTO websites (website_name, website_link) VALUES ($1, $2)
ON CONFLICT (website_name) DO UPDATE SET website_link = EXCLUDED.website_link
RETURNING website_id, website_name, website_link
`, site.Name, site.Link).Scan(&saved.ID, &saved.Name, &saved.Link)
		metrics.ObserveNetworkRequest("postgres", "websites_upsert", "websites", start, err)
		if err != nil {
			return nil, fmt.Errorf("website %s: %w", site.Name, err)
		}
		out = append(out, saved)
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "websites", start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListWebsites возвращает каталог сайтов.
func (p *Postgres) ListWebsites(ctx context.Context) ([]domain.Website, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT website_id, website_name, website_link FROM websites ORDER BY website_id`)
	metrics.ObserveNetworkRequest("postgres", "websites_list", "websites", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sites []domain.Website
	for rows.Next() {
		var site domain.Website
		if err := rows.Scan(&site.ID, &site.Name, &site.Link); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// GetWebsite возвращает сайт по идентификатору.
func (p *Postgres) GetWebsite(ctx context.Context, websiteID int64) (domain.Website, error) {
	return p.getWebsite(ctx, "websites_get", `WHERE website_id=$1`, websiteID)
}

// GetWebsiteByName возвращает сайт по имени без учёта регистра.
func (p *Postgres) GetWebsiteByName(ctx context.Context, name string) (domain.Website, error) {
	return p.getWebsite(ctx, "websites_get_by_name", `WHERE lower(website_name)=lower($1)`, strings.TrimSpace(name))
}

func (p *Postgres) getWebsite(ctx context.Context, op, where string, arg any) (domain.Website, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var site domain.Website
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT website_id, website_name, website_link FROM websites `+where, arg).Scan(&site.ID, &site.Name, &site.Link)
	metrics.ObserveNetworkRequest("postgres", op, "websites", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Website{}, domain.ErrWebsiteNotFound
	}
	return site, err
}

// UpsertAccount атомарно создаёт или перезаписывает аккаунт пары (chat_id, website_id).
// Уникальный ключ user_websites_chat_website_key исключает гонку «проверить, затем вставить».
func (p *Postgres) UpsertAccount(ctx context.Context, chatID, websiteID int64, login, password string) (domain.Account, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		acc     domain.Account
		created bool
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO user_websites (chat_id, website_id, login, password) VALUES ($1, $2, $3, $4)
ON CONFLICT ON CONSTRAINT user_websites_chat_website_key DO UPDATE SET login = EXCLUDED.login, password = EXCLUDED.password
RETURNING id, chat_id, website_id, login, password, (xmax = 0) AS inserted
`, chatID, websiteID, login, password).Scan(&acc.ID, &acc.ChatID, &acc.WebsiteID, &acc.Login, &acc.Password, &created)
	metrics.ObserveNetworkRequest("postgres", "user_websites_upsert", "user_websites", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			if pgErr.ConstraintName == "user_websites_website_id_fkey" {
				return domain.Account{}, false, domain.ErrWebsiteNotFound
			}
			return domain.Account{}, false, domain.ErrUserNotFound
		}
		return domain.Account{}, false, err
	}
	return acc, created, nil
}

// ListAccounts возвращает аккаунты пользователя вместе с сайтом.
func (p *Postgres) ListAccounts(ctx context.Context, chatID int64) ([]domain.Account, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT uw.id, uw.chat_id, uw.website_id, uw.login, uw.password, w.website_id, w.website_name, w.website_link
FROM user_websites uw
JOIN websites w ON w.website_id = uw.website_id
WHERE uw.chat_id=$1
ORDER BY uw.id
`, chatID)
	metrics.ObserveNetworkRequest("postgres", "user_websites_list", "user_websites", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []domain.Account
	for rows.Next() {
		var acc domain.Account
		if err := rows.Scan(&acc.ID, &acc.ChatID, &acc.WebsiteID, &acc.Login, &acc.Password, &acc.Website.ID, &acc.Website.Name, &acc.Website.Link); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// WithAccountTx выполняет fn в одной транзакции. Соединение освобождается до возврата.
// Все запросы транзакции укладываются в txTimeout, даже если ctx не ограничен.
func (p *Postgres) WithAccountTx(ctx context.Context, accountID int64, fn func(w domain.BookmarkWriter) error) error {
	deadline := time.Now().Add(p.txTimeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "bookmarks", start, err)
	if err != nil {
		return err
	}
	defer func() {
		rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = tx.Rollback(rollbackCtx)
	}()

	if err := fn(&bookmarkWriter{tx: tx, accountID: accountID, deadline: deadline}); err != nil {
		return err
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "bookmarks", start, err)
	return err
}

type bookmarkWriter struct {
	tx        pgx.Tx
	accountID int64
	deadline  time.Time
}

// UpsertBookmark вставляет закладку или полностью перезаписывает поля существующей.
func (w *bookmarkWriter) UpsertBookmark(ctx context.Context, b domain.Bookmark) (int64, bool, error) {
	if b.AccountID != w.accountID {
		return 0, false, fmt.Errorf("bookmark belongs to account %d, transaction is for %d", b.AccountID, w.accountID)
	}
	ctx, cancel := context.WithDeadline(ctx, w.deadline)
	defer cancel()

	var updatedAt any
	if b.TimeOfLastUpdate != nil {
		updatedAt = b.TimeOfLastUpdate.UTC()
	}
	var (
		id       int64
		inserted bool
	)
	start := time.Now()
	err := w.tx.QueryRow(ctx, `
INSERT INTO bookmarks (user_website_id, title, image, last_chapter_title, time_of_last_update, link_on_title, link_on_last_chapter)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT ON CONSTRAINT bookmarks_account_title_key DO UPDATE SET
	image = EXCLUDED.image,
	last_chapter_title = EXCLUDED.last_chapter_title,
	time_of_last_update = EXCLUDED.time_of_last_update,
	link_on_title = EXCLUDED.link_on_title,
	link_on_last_chapter = EXCLUDED.link_on_last_chapter
RETURNING bookmark_id, (xmax = 0) AS inserted
`, w.accountID, b.Title, b.Image, b.LastChapterTitle, updatedAt, b.LinkOnTitle, b.LinkOnLastChapter).Scan(&id, &inserted)
	metrics.ObserveNetworkRequest("postgres", "bookmarks_upsert", "bookmarks", start, err)
	if err != nil {
		return 0, false, err
	}
	return id, inserted, nil
}

// ListBookmarks возвращает все закладки пользователя, при необходимости по одному сайту.
func (p *Postgres) ListBookmarks(ctx context.Context, chatID int64, websiteID *int64) ([]domain.Bookmark, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query := `
SELECT b.bookmark_id, b.user_website_id, b.title, b.image, b.last_chapter_title, b.time_of_last_update, b.link_on_title, b.link_on_last_chapter
FROM bookmarks b
JOIN user_websites uw ON uw.id = b.user_website_id
WHERE uw.chat_id=$1`
	args := []any{chatID}
	if websiteID != nil {
		query += ` AND uw.website_id=$2`
		args = append(args, *websiteID)
	}
	query += ` ORDER BY b.time_of_last_update DESC NULLS LAST, b.title`

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "bookmarks_list", "bookmarks", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Bookmark
	for rows.Next() {
		var (
			b         domain.Bookmark
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.AccountID, &b.Title, &b.Image, &b.LastChapterTitle, &updatedAt, &b.LinkOnTitle, &b.LinkOnLastChapter); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			ts := updatedAt.Time
			b.TimeOfLastUpdate = &ts
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
