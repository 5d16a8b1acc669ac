package bookmarks

import (
	"context"
	"errors"
	"testing"
	"time"

	"manga-bookmark-bot/internal/domain"
)

func raw(title, chapter string) domain.RawBookmark {
	return domain.RawBookmark{Title: title, ChapterTitle: chapter, TitleLink: "https://manga-scans.com/" + title}
}

func TestReconcileInsertsNewTitles(t *testing.T) {
	repo := newMemoryRepo()
	r := NewReconciler(repo)

	res, err := r.Reconcile(context.Background(), 1, []domain.RawBookmark{raw("A", "1"), raw("B", "2"), raw("C", "3")})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Inserted != 3 || res.Updated != 0 {
		t.Fatalf("ожидали 3 вставки, получили %+v", res)
	}
	if len(repo.rows) != 3 {
		t.Fatalf("ожидали 3 строки, получили %d", len(repo.rows))
	}
}

func TestReconcileUpdatesInPlace(t *testing.T) {
	repo := newMemoryRepo()
	r := NewReconciler(repo)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, 1, []domain.RawBookmark{raw("Solo Leveling", "Chapter 180")}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	before, _ := repo.byTitle(1, "Solo Leveling")

	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	next := raw("Solo Leveling", "Chapter 181")
	next.UpdatedAt = &ts
	res, err := r.Reconcile(ctx, 1, []domain.RawBookmark{next})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Inserted != 0 || res.Updated != 1 {
		t.Fatalf("ожидали одно обновление, получили %+v", res)
	}
	after, ok := repo.byTitle(1, "Solo Leveling")
	if !ok || after.ID != before.ID {
		t.Fatalf("идентификатор закладки должен сохраниться")
	}
	if after.LastChapterTitle != "Chapter 181" || after.TimeOfLastUpdate == nil || !after.TimeOfLastUpdate.Equal(ts) {
		t.Fatalf("ожидали перезапись полей, получили %+v", after)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("дубликаты недопустимы")
	}
}

func TestReconcileOverwritesWithEmptyValues(t *testing.T) {
	repo := newMemoryRepo()
	r := NewReconciler(repo)
	ctx := context.Background()

	first := raw("A", "1")
	first.ImageURL = "https://img/a.png"
	if _, err := r.Reconcile(ctx, 1, []domain.RawBookmark{first}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := r.Reconcile(ctx, 1, []domain.RawBookmark{{Title: "A"}}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	got, _ := repo.byTitle(1, "A")
	if got.Image != "" || got.LastChapterTitle != "" {
		t.Fatalf("обновление должно быть полной заменой, получили %+v", got)
	}
}

func TestReconcileDuplicateTitlesLastWins(t *testing.T) {
	repo := newMemoryRepo()
	r := NewReconciler(repo)

	res, err := r.Reconcile(context.Background(), 1, []domain.RawBookmark{raw("A", "1"), raw(" A ", "2"), raw("B", "1")})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Inserted != 2 {
		t.Fatalf("ожидали 2 вставки, получили %+v", res)
	}
	got, _ := repo.byTitle(1, "A")
	if got.LastChapterTitle != "2" {
		t.Fatalf("ожидали последнее вхождение, получили %q", got.LastChapterTitle)
	}
}

func TestReconcileSkipsBlankTitles(t *testing.T) {
	repo := newMemoryRepo()
	r := NewReconciler(repo)

	res, err := r.Reconcile(context.Background(), 1, []domain.RawBookmark{raw("  ", "1"), raw("A", "1")})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Skipped != 1 || res.Inserted != 1 {
		t.Fatalf("ожидали 1 пропуск и 1 вставку, получили %+v", res)
	}
}

func TestReconcileEmptyBatchIsNoop(t *testing.T) {
	repo := newMemoryRepo()
	res, err := NewReconciler(repo).Reconcile(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res != (domain.ReconcileResult{}) || repo.txCount != 0 {
		t.Fatalf("пустая пачка не должна открывать транзакцию")
	}
}

func TestReconcileRollsBackOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	r := NewReconciler(repo)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, 1, []domain.RawBookmark{raw("A", "1")}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	repo.failOn = "C"
	_, err := r.Reconcile(ctx, 1, []domain.RawBookmark{raw("A", "2"), raw("B", "1"), raw("C", "1")})
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("ожидали PersistenceError, получили %v", err)
	}
	if !errors.Is(err, errInjected) {
		t.Fatalf("исходная ошибка должна разворачиваться")
	}
	if len(repo.rows) != 1 {
		t.Fatalf("частичные записи недопустимы, строк: %d", len(repo.rows))
	}
	got, _ := repo.byTitle(1, "A")
	if got.LastChapterTitle != "1" {
		t.Fatalf("закладка не должна измениться после отката")
	}
}

func TestReconcileKeepsAccountsSeparate(t *testing.T) {
	repo := newMemoryRepo()
	r := NewReconciler(repo)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, 1, []domain.RawBookmark{raw("A", "1")}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	res, err := r.Reconcile(ctx, 2, []domain.RawBookmark{raw("A", "5")})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Inserted != 1 {
		t.Fatalf("одинаковый заголовок у другого аккаунта должен вставляться")
	}
	first, _ := repo.byTitle(1, "A")
	if first.LastChapterTitle != "1" {
		t.Fatalf("чужой аккаунт не должен меняться")
	}
}
