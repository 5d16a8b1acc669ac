package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"manga-bookmark-bot/internal/adapters/bot"
	"manga-bookmark-bot/internal/app"
	"manga-bookmark-bot/internal/infra/config"
	httpinfra "manga-bookmark-bot/internal/infra/http"
	applog "manga-bookmark-bot/internal/infra/log"
	"manga-bookmark-bot/internal/infra/metrics"
	"manga-bookmark-bot/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "bot-gateway")

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("bot-gateway: не указан токен Telegram (TG_BOT_TOKEN)")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: не удалось запустить движок синхронизации")
	}
	defer a.Close()

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: не удалось создать бота")
	}
	if cfg.Telegram.WebhookURL != "" {
		hook, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot-gateway: некорректный адрес вебхука")
		}
		params := tgbotapi.Params{"url": hook.URL.String()}
		if cfg.Telegram.WebhookSecret != "" {
			params["secret_token"] = cfg.Telegram.WebhookSecret
		}
		if _, err := botAPI.MakeRequest("setWebhook", params); err != nil {
			logger.Fatal().Err(err).Msg("bot-gateway: не удалось зарегистрировать вебхук")
		}
	}

	// Scheduler здесь нужен только для сохранения времени уведомлений: плановые запуски живут в cmd/scheduler.
	scheduleService := schedule.NewService(a.Repo, a.Syncer, a.Bookmarks, nil, logger, cfg.Sync.Interval, cfg.Sync.NotifyWindow)
	h := bot.NewHandler(botAPI, logger, bot.Deps{
		Users:     a.Repo,
		Websites:  a.Repo,
		Bookmarks: a.Bookmarks,
		Creds:     a.Credentials,
		Updater:   a.Syncer,
		Schedule:  scheduleService,
	})

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger(), a.Repo)
	srv.Router.With(httpinfra.WebhookSecretMiddleware(cfg.Telegram.WebhookSecret)).
		Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
			var update tgbotapi.Update
			if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			// Ручное обновление может идти минуты: отвечаем Telegram сразу, апдейт обрабатываем в фоне.
			go h.HandleUpdate(context.WithoutCancel(ctx), update)
			w.WriteHeader(http.StatusOK)
		})

	go func() {
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("bot-gateway: HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("остановка бота")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
