package domain

import "time"

// SyncTrigger описывает источник запуска синхронизации.
type SyncTrigger string

const (
	// SyncTriggerScheduled: плановый обход всех активных пользователей.
	SyncTriggerScheduled SyncTrigger = "scheduled"
	// SyncTriggerManual: пользователь явно запросил обновление.
	SyncTriggerManual SyncTrigger = "manual"
)

// AccountStatus описывает итог синхронизации одного аккаунта.
type AccountStatus string

const (
	AccountSucceeded AccountStatus = "succeeded"
	AccountFailed    AccountStatus = "failed"
	AccountSkipped   AccountStatus = "skipped"
)

// AccountOutcome содержит результат обработки одного аккаунта в запуске.
type AccountOutcome struct {
	ChatID    int64
	AccountID int64
	Website   string
	Status    AccountStatus
	Result    ReconcileResult
	Err       error
}

// RunReport агрегирует результат запуска синхронизации.
type RunReport struct {
	ID         string
	Trigger    SyncTrigger
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Failed     int
	Skipped    int
	Accounts   []AccountOutcome
	// Err заполняется, если запуск не смог получить пользователей или их аккаунты.
	Err error
}

// Add учитывает результат аккаунта в отчёте.
func (r *RunReport) Add(outcome AccountOutcome) {
	switch outcome.Status {
	case AccountSucceeded:
		r.Succeeded++
	case AccountFailed:
		r.Failed++
	case AccountSkipped:
		r.Skipped++
	}
	r.Accounts = append(r.Accounts, outcome)
}

// SucceededUsers возвращает chat_id пользователей, у которых хотя бы один аккаунт синхронизирован.
func (r RunReport) SucceededUsers() []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, acc := range r.Accounts {
		if acc.Status != AccountSucceeded {
			continue
		}
		if _, ok := seen[acc.ChatID]; ok {
			continue
		}
		seen[acc.ChatID] = struct{}{}
		out = append(out, acc.ChatID)
	}
	return out
}
