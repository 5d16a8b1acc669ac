// Package scraper выбирает адаптер по сайту и содержит общие утилиты разбора страниц.
package scraper

import (
	"context"
	"errors"
	"strings"

	"manga-bookmark-bot/internal/domain"
)

// ErrUnsupportedWebsite возвращается для сайта без адаптера.
var ErrUnsupportedWebsite = errors.New("no adapter for website")

// Registry направляет вызов адаптеру сайта по его имени.
type Registry struct {
	adapters map[string]domain.Scraper
}

var _ domain.Scraper = (*Registry)(nil)

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]domain.Scraper)}
}

// Register привязывает адаптер к имени сайта.
func (r *Registry) Register(websiteName string, adapter domain.Scraper) {
	r.adapters[normalize(websiteName)] = adapter
}

// Supports сообщает, есть ли адаптер для сайта.
func (r *Registry) Supports(websiteName string) bool {
	_, ok := r.adapters[normalize(websiteName)]
	return ok
}

// Scrape вызывает адаптер сайта. Для неизвестного сайта возвращает parse-отказ.
func (r *Registry) Scrape(ctx context.Context, website domain.Website, creds domain.Credentials) ([]domain.RawBookmark, error) {
	adapter, ok := r.adapters[normalize(website.Name)]
	if !ok {
		return nil, domain.NewScrapeFailure(domain.ScrapeParse, website.Name, ErrUnsupportedWebsite)
	}
	return adapter.Scrape(ctx, website, creds)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
