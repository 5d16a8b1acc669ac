package bookmarks

import (
	"context"
	"strings"

	"manga-bookmark-bot/internal/domain"
	"manga-bookmark-bot/internal/infra/metrics"
)

// Reconciler применяет результаты скрапинга к сохранённым закладкам аккаунта.
type Reconciler struct {
	repo domain.BookmarkRepo
}

// NewReconciler создаёт сверщик.
func NewReconciler(repo domain.BookmarkRepo) *Reconciler {
	return &Reconciler{repo: repo}
}

// Reconcile вставляет новые заголовки и полностью перезаписывает существующие.
// Все записи аккаунта фиксируются одной транзакцией. Ошибка записи возвращается как *domain.PersistenceError.
func (r *Reconciler) Reconcile(ctx context.Context, accountID int64, raw []domain.RawBookmark) (domain.ReconcileResult, error) {
	batch, skipped := collapse(accountID, raw)
	result := domain.ReconcileResult{Skipped: skipped}
	if len(batch) == 0 {
		return result, nil
	}

	var inserted, updated int
	err := r.repo.WithAccountTx(ctx, accountID, func(w domain.BookmarkWriter) error {
		inserted, updated = 0, 0
		for _, b := range batch {
			_, isNew, err := w.UpsertBookmark(ctx, b)
			if err != nil {
				return err
			}
			if isNew {
				inserted++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return domain.ReconcileResult{}, &domain.PersistenceError{Op: "reconcile", Err: err}
	}

	result.Inserted = inserted
	result.Updated = updated
	metrics.AddReconciled(inserted, updated)
	return result, nil
}

// collapse оставляет для каждого заголовка последнее вхождение в пачке.
// Победители идут в порядке их последнего появления в выдаче адаптера.
func collapse(accountID int64, raw []domain.RawBookmark) ([]domain.Bookmark, int) {
	last := make(map[string]int, len(raw))
	skipped := 0
	for i, rec := range raw {
		title := strings.TrimSpace(rec.Title)
		if title == "" {
			skipped++
			continue
		}
		last[title] = i
	}

	out := make([]domain.Bookmark, 0, len(last))
	for i, rec := range raw {
		title := strings.TrimSpace(rec.Title)
		if title == "" || last[title] != i {
			continue
		}
		out = append(out, domain.Bookmark{
			AccountID:         accountID,
			Title:             title,
			Image:             rec.ImageURL,
			LastChapterTitle:  rec.ChapterTitle,
			TimeOfLastUpdate:  rec.UpdatedAt,
			LinkOnTitle:       rec.TitleLink,
			LinkOnLastChapter: rec.ChapterLink,
		})
	}
	return out, skipped
}
