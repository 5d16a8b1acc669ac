package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`

	PGDSN          string `envconfig:"PG_DSN"`
	CredentialsKey string `envconfig:"CREDENTIALS_KEY"`

	Telegram struct {
		Token         string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL    string `envconfig:"TG_WEBHOOK_URL"`
		WebhookSecret string `envconfig:"TG_WEBHOOK_SECRET"`
	} `envconfig:""`

	RedisAddr string        `envconfig:"REDIS_ADDR"`
	LockTTL   time.Duration `envconfig:"LOCK_TTL" default:"10m"`

	Sync struct {
		Interval      time.Duration `envconfig:"SYNC_INTERVAL" default:"6h"`
		Concurrency   int           `envconfig:"SYNC_CONCURRENCY" default:"4"`
		ScrapeTimeout time.Duration `envconfig:"SCRAPE_TIMEOUT" default:"2m"`
		RecentWindow  time.Duration `envconfig:"RECENT_WINDOW" default:"24h"`
		NotifyWindow  time.Duration `envconfig:"NOTIFY_WINDOW"`
	} `envconfig:""`

	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load загружает конфиг из окружения. Файл .env, если он есть, читается первым.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает окружение без завершения процесса.
func Parse() (AppConfig, error) {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	if cfg.Sync.NotifyWindow <= 0 {
		cfg.Sync.NotifyWindow = cfg.Sync.Interval
	}
	return cfg, nil
}

// Validate проверяет обязательные параметры движка синхронизации.
func (c AppConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.PGDSN) == "" {
		missing = append(missing, "PG_DSN")
	}
	if strings.TrimSpace(c.CredentialsKey) == "" {
		missing = append(missing, "CREDENTIALS_KEY")
	}
	if len(missing) > 0 {
		return errors.New("не заданы обязательные переменные: " + strings.Join(missing, ", "))
	}
	if c.Sync.Interval <= 0 {
		return errors.New("SYNC_INTERVAL должен быть положительным")
	}
	if c.Sync.Concurrency <= 0 {
		return errors.New("SYNC_CONCURRENCY должен быть положительным")
	}
	return nil
}
