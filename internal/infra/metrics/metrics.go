package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Количество запусков синхронизации",
	}, []string{"trigger"})

	SyncRunSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_run_seconds",
		Help:    "Длительность запуска синхронизации",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
	}, []string{"trigger"})

	SyncAccountsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_accounts_total",
		Help: "Результаты синхронизации аккаунтов",
	}, []string{"status", "kind"})

	BookmarksReconciled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmarks_reconciled_total",
		Help: "Закладки, вставленные или обновлённые при сверке",
	}, []string{"op"})

	NotificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Уведомления о свежих главах",
	}, []string{"status"})

	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120, 180},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		SyncRunsTotal,
		SyncRunSeconds,
		SyncAccountsTotal,
		BookmarksReconciled,
		NotificationsSent,
		BotSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveSyncRun учитывает завершённый запуск синхронизации.
func ObserveSyncRun(trigger string, duration time.Duration) {
	SyncRunsTotal.WithLabelValues(trigger).Inc()
	SyncRunSeconds.WithLabelValues(trigger).Observe(duration.Seconds())
}

// IncAccount учитывает результат синхронизации аккаунта. kind пуст для успешных.
func IncAccount(status, kind string) {
	if kind == "" {
		kind = "none"
	}
	SyncAccountsTotal.WithLabelValues(status, kind).Inc()
}

// AddReconciled учитывает вставленные и обновлённые закладки.
func AddReconciled(inserted, updated int) {
	if inserted > 0 {
		BookmarksReconciled.WithLabelValues("insert").Add(float64(inserted))
	}
	if updated > 0 {
		BookmarksReconciled.WithLabelValues("update").Add(float64(updated))
	}
}

// IncNotification учитывает попытку доставки уведомления.
func IncNotification(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	NotificationsSent.WithLabelValues(status).Inc()
}
