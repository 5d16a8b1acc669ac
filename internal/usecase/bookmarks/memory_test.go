package bookmarks

import (
	"context"
	"errors"
	"sync"

	"manga-bookmark-bot/internal/domain"
)

// memoryRepo хранит закладки в памяти и повторяет транзакционную семантику репозитория.
type memoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]domain.Bookmark
	owners  map[int64]int64
	sites   map[int64]int64
	failOn  string
	txCount int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]domain.Bookmark), owners: make(map[int64]int64), sites: make(map[int64]int64)}
}

var errInjected = errors.New("injected write failure")

func (m *memoryRepo) WithAccountTx(_ context.Context, _ int64, fn func(w domain.BookmarkWriter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	staged := make(map[int64]domain.Bookmark, len(m.rows))
	for id, b := range m.rows {
		staged[id] = b
	}
	w := &memoryWriter{repo: m, rows: staged, nextID: m.nextID}
	if err := fn(w); err != nil {
		return err
	}
	m.rows = staged
	m.nextID = w.nextID
	return nil
}

func (m *memoryRepo) ListBookmarks(_ context.Context, chatID int64, websiteID *int64) ([]domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Bookmark
	for _, b := range m.rows {
		if m.owners[b.AccountID] != chatID {
			continue
		}
		if websiteID != nil && m.sites[b.AccountID] != *websiteID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *memoryRepo) byTitle(accountID int64, title string) (domain.Bookmark, bool) {
	for _, b := range m.rows {
		if b.AccountID == accountID && b.Title == title {
			return b, true
		}
	}
	return domain.Bookmark{}, false
}

type memoryWriter struct {
	repo   *memoryRepo
	rows   map[int64]domain.Bookmark
	nextID int64
}

func (w *memoryWriter) UpsertBookmark(_ context.Context, b domain.Bookmark) (int64, bool, error) {
	if w.repo.failOn != "" && b.Title == w.repo.failOn {
		return 0, false, errInjected
	}
	for id, existing := range w.rows {
		if existing.AccountID == b.AccountID && existing.Title == b.Title {
			b.ID = id
			w.rows[id] = b
			return id, false, nil
		}
	}
	w.nextID++
	b.ID = w.nextID
	w.rows[b.ID] = b
	return b.ID, true, nil
}
