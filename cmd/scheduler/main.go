package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"manga-bookmark-bot/internal/adapters/telegram"
	"manga-bookmark-bot/internal/app"
	"manga-bookmark-bot/internal/domain"
	"manga-bookmark-bot/internal/infra/config"
	httpinfra "manga-bookmark-bot/internal/infra/http"
	applog "manga-bookmark-bot/internal/infra/log"
	"manga-bookmark-bot/internal/infra/metrics"
	"manga-bookmark-bot/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "scheduler")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось запустить движок синхронизации")
	}
	defer a.Close()

	var notifier domain.Notifier
	if cfg.Telegram.Token != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: не удалось создать бота")
		}
		notifier = telegram.NewNotifier(botAPI)
	} else {
		logger.Warn().Msg("scheduler: TG_BOT_TOKEN не задан, уведомления отключены")
	}

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger(), a.Repo)
	go func() {
		if err := srv.Start(cfg.MetricsAddr); err != nil {
			logger.Error().Err(err).Msg("scheduler: HTTP сервер остановлен")
		}
	}()

	scheduler := schedule.NewService(a.Repo, a.Syncer, a.Bookmarks, notifier, logger, cfg.Sync.Interval, cfg.Sync.NotifyWindow)
	scheduler.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
