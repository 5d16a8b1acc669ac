package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"manga-bookmark-bot/internal/domain"
	"manga-bookmark-bot/internal/infra/metrics"
)

const (
	defaultConcurrency   = 4
	defaultScrapeTimeout = 2 * time.Minute
)

// CredentialSource расшифровывает учётные данные аккаунта.
type CredentialSource interface {
	Credentials(account domain.Account) (domain.Credentials, error)
}

// Reconciler применяет выдачу адаптера к закладкам аккаунта.
type Reconciler interface {
	Reconcile(ctx context.Context, accountID int64, raw []domain.RawBookmark) (domain.ReconcileResult, error)
}

// Options задаёт параметры запуска.
type Options struct {
	Concurrency   int
	ScrapeTimeout time.Duration
}

// Orchestrator синхронизирует закладки всех аккаунтов пользователей.
// Отказ одного аккаунта не влияет на остальные и попадает в отчёт запуска.
type Orchestrator struct {
	users      domain.UserRepo
	accounts   domain.AccountRepo
	creds      CredentialSource
	scraper    domain.Scraper
	reconciler Reconciler
	locker     domain.AccountLocker
	logger     zerolog.Logger
	opts       Options
	now        func() time.Time
}

// New создаёт оркестратор.
func New(users domain.UserRepo, accounts domain.AccountRepo, creds CredentialSource, scraper domain.Scraper, reconciler Reconciler, locker domain.AccountLocker, logger zerolog.Logger, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.ScrapeTimeout <= 0 {
		opts.ScrapeTimeout = defaultScrapeTimeout
	}
	return &Orchestrator{
		users:      users,
		accounts:   accounts,
		creds:      creds,
		scraper:    scraper,
		reconciler: reconciler,
		locker:     locker,
		logger:     logger.With().Str("component", "syncer").Logger(),
		opts:       opts,
		now:        time.Now,
	}
}

// RunFleet синхронизирует всех активных пользователей, у которых есть аккаунты.
func (o *Orchestrator) RunFleet(ctx context.Context) domain.RunReport {
	report := o.newReport(domain.SyncTriggerScheduled)
	logger := o.logger.With().Str("run_id", report.ID).Str("trigger", string(report.Trigger)).Logger()

	users, err := o.users.ListActiveUsersWithAccounts(ctx)
	if err != nil {
		report.Err = fmt.Errorf("list active users: %w", err)
		return o.finish(report, logger)
	}

	var jobs []domain.Account
	for _, user := range users {
		if ctx.Err() != nil {
			break
		}
		accounts, err := o.accounts.ListAccounts(ctx, user.ChatID)
		if err != nil {
			logger.Error().Err(err).Int64("chat_id", user.ChatID).Msg("syncer: не удалось получить аккаунты пользователя")
			report.Err = errors.Join(report.Err, fmt.Errorf("list accounts of %d: %w", user.ChatID, err))
			continue
		}
		jobs = append(jobs, accounts...)
	}

	o.runAccounts(ctx, &report, jobs, logger)
	return o.finish(report, logger)
}

// ManualUpdate синхронизирует все аккаунты одного пользователя по его запросу.
func (o *Orchestrator) ManualUpdate(ctx context.Context, chatID int64) (domain.RunReport, error) {
	if _, err := o.users.GetUser(ctx, chatID); err != nil {
		return domain.RunReport{}, err
	}
	accounts, err := o.accounts.ListAccounts(ctx, chatID)
	if err != nil {
		return domain.RunReport{}, err
	}

	report := o.newReport(domain.SyncTriggerManual)
	logger := o.logger.With().Str("run_id", report.ID).Str("trigger", string(report.Trigger)).Int64("chat_id", chatID).Logger()
	o.runAccounts(ctx, &report, accounts, logger)
	return o.finish(report, logger), nil
}

func (o *Orchestrator) newReport(trigger domain.SyncTrigger) domain.RunReport {
	return domain.RunReport{ID: uuid.NewString(), Trigger: trigger, StartedAt: o.now()}
}

func (o *Orchestrator) finish(report domain.RunReport, logger zerolog.Logger) domain.RunReport {
	report.FinishedAt = o.now()
	metrics.ObserveSyncRun(string(report.Trigger), report.FinishedAt.Sub(report.StartedAt))
	if report.Err != nil {
		logger.Error().Err(report.Err).Msg("syncer: запуск выполнен не полностью")
	}
	logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("syncer: запуск завершён")
	return report
}

// runAccounts обрабатывает аккаунты с ограниченным параллелизмом.
// Отмена ctx проверяется только между аккаунтами: начатый аккаунт доводится до конца.
func (o *Orchestrator) runAccounts(ctx context.Context, report *domain.RunReport, accounts []domain.Account, logger zerolog.Logger) {
	if len(accounts) == 0 {
		return
	}
	outcomes := make([]domain.AccountOutcome, len(accounts))
	started := make([]bool, len(accounts))
	workCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for i, account := range accounts {
		if ctx.Err() != nil {
			logger.Warn().Int("pending", len(accounts)-i).Msg("syncer: запуск отменён")
			break
		}
		started[i] = true
		g.Go(func() error {
			outcomes[i] = o.syncAccount(workCtx, account, logger)
			return nil
		})
	}
	_ = g.Wait()

	for i, outcome := range outcomes {
		if started[i] {
			report.Add(outcome)
		}
	}

	now := o.now()
	for _, chatID := range report.SucceededUsers() {
		if err := o.users.TouchLastUpdate(workCtx, chatID, now); err != nil {
			logger.Error().Err(err).Int64("chat_id", chatID).Msg("syncer: не удалось обновить время синхронизации")
		}
	}
}

func (o *Orchestrator) syncAccount(ctx context.Context, account domain.Account, logger zerolog.Logger) domain.AccountOutcome {
	outcome := domain.AccountOutcome{ChatID: account.ChatID, AccountID: account.ID, Website: account.Website.Name}
	accLogger := logger.With().
		Int64("chat_id", account.ChatID).
		Int64("account_id", account.ID).
		Str("website", account.Website.Name).
		Logger()

	result, err := o.process(ctx, account)
	kind := domain.FailureKind(err)
	switch {
	case err == nil:
		outcome.Status = domain.AccountSucceeded
		outcome.Result = result
		accLogger.Info().
			Int("inserted", result.Inserted).
			Int("updated", result.Updated).
			Int("skipped", result.Skipped).
			Msg("syncer: аккаунт синхронизирован")
	case errors.Is(err, domain.ErrAccountBusy):
		outcome.Status = domain.AccountSkipped
		outcome.Err = err
		accLogger.Info().Str("kind", kind).Msg("syncer: аккаунт уже синхронизируется")
	default:
		outcome.Status = domain.AccountFailed
		outcome.Err = err
		accLogger.Error().Err(err).Str("kind", kind).Msg("syncer: ошибка синхронизации аккаунта")
	}
	metrics.IncAccount(string(outcome.Status), kind)
	return outcome
}

func (o *Orchestrator) process(ctx context.Context, account domain.Account) (domain.ReconcileResult, error) {
	unlock, err := o.locker.TryLock(ctx, account.ID)
	if err != nil {
		return domain.ReconcileResult{}, err
	}
	defer unlock()

	creds, err := o.creds.Credentials(account)
	if err != nil {
		var credErr *domain.CredentialError
		if !errors.As(err, &credErr) {
			err = &domain.CredentialError{Op: "decrypt", Err: err}
		}
		return domain.ReconcileResult{}, err
	}

	scrapeCtx, cancel := context.WithTimeout(ctx, o.opts.ScrapeTimeout)
	raw, err := o.scraper.Scrape(scrapeCtx, account.Website, creds)
	cancel()
	if err != nil {
		var scrapeErr *domain.ScrapeFailure
		if !errors.As(err, &scrapeErr) {
			err = domain.NewScrapeFailure(domain.ScrapeConnectivity, account.Website.Name, err)
		}
		return domain.ReconcileResult{}, err
	}

	result, err := o.reconciler.Reconcile(ctx, account.ID, raw)
	if err != nil {
		var persistErr *domain.PersistenceError
		if !errors.As(err, &persistErr) {
			err = &domain.PersistenceError{Op: "reconcile", Err: err}
		}
		return domain.ReconcileResult{}, err
	}
	return result, nil
}
