package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"manga-bookmark-bot/internal/domain"
)

// ErrInvalidNotificationTime возвращается, если время уведомлений не в формате HH:MM.
var ErrInvalidNotificationTime = errors.New("invalid notification time")

const defaultInterval = 6 * time.Hour

// FleetRunner выполняет плановый запуск синхронизации.
type FleetRunner interface {
	RunFleet(ctx context.Context) domain.RunReport
}

// RecentSource отдаёт свежие закладки пользователя.
type RecentSource interface {
	RecentBookmarks(ctx context.Context, chatID int64, window time.Duration) ([]domain.Bookmark, error)
}

// Service отвечает за расписание синхронизации и уведомлений.
type Service struct {
	users        domain.UserRepo
	runner       FleetRunner
	recent       RecentSource
	notifier     domain.Notifier
	logger       zerolog.Logger
	interval     time.Duration
	notifyWindow time.Duration
}

// NewService создаёт сервис. notifier может быть nil: тогда уведомления не отправляются.
func NewService(users domain.UserRepo, runner FleetRunner, recent RecentSource, notifier domain.Notifier, logger zerolog.Logger, interval, notifyWindow time.Duration) *Service {
	if interval <= 0 {
		interval = defaultInterval
	}
	if notifyWindow <= 0 {
		notifyWindow = interval
	}
	return &Service{
		users:        users,
		runner:       runner,
		recent:       recent,
		notifier:     notifier,
		logger:       logger.With().Str("component", "scheduler").Logger(),
		interval:     interval,
		notifyWindow: notifyWindow,
	}
}

// Run запускает синхронизацию сразу и затем каждые interval, пока ctx не отменён.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("scheduler: запущен")
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler: остановлен")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick выполняет один плановый запуск и рассылает уведомления пользователям с успешной синхронизацией.
func (s *Service) Tick(ctx context.Context) domain.RunReport {
	report := s.runner.RunFleet(ctx)
	if report.Err != nil {
		s.logger.Error().Err(report.Err).Str("run_id", report.ID).Msg("scheduler: плановый запуск выполнен не полностью")
	}
	if s.notifier == nil || ctx.Err() != nil {
		return report
	}
	for _, chatID := range report.SucceededUsers() {
		s.notify(ctx, chatID)
	}
	return report
}

func (s *Service) notify(ctx context.Context, chatID int64) {
	list, err := s.recent.RecentBookmarks(ctx, chatID, s.notifyWindow)
	if err != nil {
		s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("scheduler: не удалось получить свежие закладки")
		return
	}
	if len(list) == 0 {
		return
	}
	if err := s.notifier.NotifyRecent(ctx, chatID, list); err != nil {
		s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("scheduler: не удалось отправить уведомление")
	}
}

// UpdateNotificationTime сохраняет время уведомлений пользователя. Пустая строка сбрасывает значение.
func (s *Service) UpdateNotificationTime(ctx context.Context, chatID int64, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return s.users.SetNotificationTime(ctx, chatID, nil)
	}
	parsed, err := ParseNotificationTime(trimmed)
	if err != nil {
		return err
	}
	value := parsed.Format("15:04")
	if err := s.users.SetNotificationTime(ctx, chatID, &value); err != nil {
		return fmt.Errorf("обновление времени уведомлений: %w", err)
	}
	return nil
}

// ParseNotificationTime разбирает время в формате HH:MM.
func ParseNotificationTime(raw string) (time.Time, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidNotificationTime, raw)
	}
	return parsed, nil
}
