package domain

import (
	"errors"
	"fmt"
)

// ErrUserNotFound возвращается, если пользователь с таким chat_id не зарегистрирован.
var ErrUserNotFound = errors.New("user not found")

// ErrWebsiteNotFound возвращается для сайта вне каталога.
var ErrWebsiteNotFound = errors.New("website not found")

// ErrAccountBusy возвращается, если аккаунт уже синхронизируется другой задачей.
var ErrAccountBusy = errors.New("account sync already in progress")

// CredentialError означает неверный ключ или повреждённый шифротекст.
// Аккаунт требует повторного ввода учётных данных.
type CredentialError struct {
	Op  string
	Err error
}

func (e *CredentialError) Error() string {
	if e.Err == nil {
		return "credential " + e.Op + " failed"
	}
	return fmt.Sprintf("credential %s failed: %v", e.Op, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// ScrapeKind классифицирует отказ адаптера.
type ScrapeKind string

const (
	ScrapeAuth         ScrapeKind = "auth"
	ScrapeConnectivity ScrapeKind = "connectivity"
	ScrapeParse        ScrapeKind = "parse"
)

// ScrapeFailure описывает отказ адаптера сайта. Повторяется только при следующем плановом запуске.
type ScrapeFailure struct {
	Kind    ScrapeKind
	Website string
	Err     error
}

func (e *ScrapeFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scrape %s: %s failure", e.Website, e.Kind)
	}
	return fmt.Sprintf("scrape %s: %s failure: %v", e.Website, e.Kind, e.Err)
}

func (e *ScrapeFailure) Unwrap() error { return e.Err }

// NewScrapeFailure создаёт отказ указанного класса.
func NewScrapeFailure(kind ScrapeKind, website string, err error) *ScrapeFailure {
	return &ScrapeFailure{Kind: kind, Website: website, Err: err}
}

// PersistenceError описывает ошибку записи в БД. Данные аккаунта остаются в последнем согласованном состоянии.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FailureKind возвращает метку класса ошибки для логов и метрик.
func FailureKind(err error) string {
	var credErr *CredentialError
	var scrapeErr *ScrapeFailure
	var persistErr *PersistenceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccountBusy):
		return "busy"
	case errors.As(err, &credErr):
		return "credential"
	case errors.As(err, &scrapeErr):
		return "scrape_" + string(scrapeErr.Kind)
	case errors.As(err, &persistErr):
		return "persistence"
	default:
		return "unknown"
	}
}
