package bookmarks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"manga-bookmark-bot/internal/domain"
)

// DefaultRecentWindow задаёт окно «свежих» обновлений по умолчанию.
const DefaultRecentWindow = 24 * time.Hour

// Service отдаёт закладки фронтенду бота.
type Service struct {
	repo   domain.BookmarkRepo
	window time.Duration
	now    func() time.Time
}

// NewService создаёт сервис. window <= 0 означает DefaultRecentWindow.
func NewService(repo domain.BookmarkRepo, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	return &Service{repo: repo, window: window, now: time.Now}
}

// ListBookmarks возвращает полный список закладок пользователя, при необходимости по одному сайту.
func (s *Service) ListBookmarks(ctx context.Context, chatID int64, websiteID *int64) ([]domain.Bookmark, error) {
	list, err := s.repo.ListBookmarks(ctx, chatID, websiteID)
	if err != nil {
		return nil, fmt.Errorf("закладки пользователя: %w", err)
	}
	return list, nil
}

// RecentBookmarks возвращает закладки, обновлённые в пределах окна. window <= 0 берёт окно сервиса.
func (s *Service) RecentBookmarks(ctx context.Context, chatID int64, window time.Duration) ([]domain.Bookmark, error) {
	if window <= 0 {
		window = s.window
	}
	list, err := s.ListBookmarks(ctx, chatID, nil)
	if err != nil {
		return nil, err
	}
	return FilterRecent(list, s.now(), window), nil
}

// FilterRecent оставляет закладки с временем обновления в [now-window, now], новые первыми.
// Закладки без времени исключаются: их свежесть нельзя доказать.
func FilterRecent(list []domain.Bookmark, now time.Time, window time.Duration) []domain.Bookmark {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	since := now.Add(-window)
	out := make([]domain.Bookmark, 0, len(list))
	for _, b := range list {
		if b.TimeOfLastUpdate == nil {
			continue
		}
		ts := *b.TimeOfLastUpdate
		if ts.Before(since) || ts.After(now) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimeOfLastUpdate.After(*out[j].TimeOfLastUpdate)
	})
	return out
}
