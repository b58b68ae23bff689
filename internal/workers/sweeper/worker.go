// Package sweeper runs the engine's background scans: balance snapshot
// refresh, auto-withdrawal, auto-reinvest, idle-account reminders and
// withdrawal reconciliation. Every scan goes through the same pipeline
// entry points as interactive requests; there is no privileged path.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
	"github.com/harvest-service/harvest_service/pkg/logger"
	"github.com/harvest-service/harvest_service/pkg/metrics"
)

// AccountLister selects the account sets the scans iterate over
type AccountLister interface {
	ListFunded(ctx context.Context) ([]*entities.Account, error)
	ListAutoWithdrawal(ctx context.Context) ([]*entities.Account, error)
	ListAutoReinvest(ctx context.Context) ([]*entities.Account, error)
	ListIdle(ctx context.Context) ([]*entities.Account, error)
}

// BalanceReader serves the computed balance view for an account
type BalanceReader interface {
	Balance(ctx context.Context, accountID uuid.UUID) (*entities.AccountBalanceView, error)
}

// Settler runs withdrawal and reinvest settlements
type Settler interface {
	Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*entities.SettlementResult, error)
	Reinvest(ctx context.Context, accountID uuid.UUID) (*entities.SettlementResult, error)
}

// Reconciler recovers stale pending withdrawal intents
type Reconciler interface {
	Run(ctx context.Context) error
}

// Notifier delivers account-facing messages
type Notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, externalID, message string) error
}

// Config holds the scan schedules and limits
type Config struct {
	BalanceRefreshSchedule string
	AutoWithdrawSchedule   string
	AutoReinvestSchedule   string
	ReminderSchedule       string
	ReconcileSchedule      string

	// Concurrency bounds how many accounts a scan touches at once
	Concurrency int

	// JobTimeout bounds a single scheduled pass
	JobTimeout time.Duration
}

// Worker schedules the background scans with cron
type Worker struct {
	lister     AccountLister
	balances   BalanceReader
	settler    Settler
	reconciler Reconciler
	notifier   Notifier
	config     Config
	cron       *cron.Cron
	logger     *logger.Logger
}

func NewWorker(
	lister AccountLister,
	balances BalanceReader,
	settler Settler,
	reconciler Reconciler,
	notifier Notifier,
	config Config,
	log *logger.Logger,
) *Worker {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 10 * time.Minute
	}
	return &Worker{
		lister:     lister,
		balances:   balances,
		settler:    settler,
		reconciler: reconciler,
		notifier:   notifier,
		config:     config,
		cron:       cron.New(),
		logger:     log,
	}
}

// Start registers the scan schedules and starts the cron loop
func (w *Worker) Start() error {
	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context)
	}{
		{"balance_refresh", w.config.BalanceRefreshSchedule, w.RefreshBalances},
		{"auto_withdraw", w.config.AutoWithdrawSchedule, w.RunAutoWithdrawals},
		{"auto_reinvest", w.config.AutoReinvestSchedule, w.RunAutoReinvests},
		{"reminder", w.config.ReminderSchedule, w.SendReminders},
		{"reconcile", w.config.ReconcileSchedule, w.RunReconciliation},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		run := job.run
		if _, err := w.cron.AddFunc(job.schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), w.config.JobTimeout)
			defer cancel()
			run(ctx)
		}); err != nil {
			return apperrors.Wrap(err, "schedule %s", job.name)
		}
	}

	w.cron.Start()
	w.logger.Info("sweep worker started",
		"concurrency", w.config.Concurrency,
		"job_timeout", w.config.JobTimeout)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("sweep worker stopped")
}

// RefreshBalances recomputes the cached ledger_balance snapshot for every
// funded account. The snapshot is presentation-only; settlements always
// recompute under the row lock.
func (w *Worker) RefreshBalances(ctx context.Context) {
	accounts, err := w.lister.ListFunded(ctx)
	if err != nil {
		w.logger.Error("balance refresh listing failed", "error", err)
		metrics.SweepScansTotal.WithLabelValues("balance_refresh", "error").Inc()
		return
	}

	w.forEach(ctx, accounts, func(ctx context.Context, account *entities.Account) {
		if _, err := w.balances.Balance(ctx, account.ID); err != nil {
			w.logger.Warn("balance refresh failed",
				"account_id", account.ID,
				"error", err)
		}
	})
	metrics.SweepScansTotal.WithLabelValues("balance_refresh", "ok").Inc()
	w.logger.Info("balance refresh pass finished", "accounts", len(accounts))
}

// RunAutoWithdrawals settles the full accrued profit for every account
// that opted into automatic withdrawal. Rejections (below minimum, lock
// contention, nothing accrued yet) are expected and skipped quietly.
func (w *Worker) RunAutoWithdrawals(ctx context.Context) {
	accounts, err := w.lister.ListAutoWithdrawal(ctx)
	if err != nil {
		w.logger.Error("auto-withdraw listing failed", "error", err)
		metrics.SweepScansTotal.WithLabelValues("auto_withdraw", "error").Inc()
		return
	}

	w.forEach(ctx, accounts, func(ctx context.Context, account *entities.Account) {
		view, err := w.balances.Balance(ctx, account.ID)
		if err != nil {
			w.logger.Warn("auto-withdraw balance read failed",
				"account_id", account.ID,
				"error", err)
			return
		}
		if !view.Profit.IsPositive() {
			return
		}

		if _, err := w.settler.Withdraw(ctx, account.ID, view.Profit); err != nil {
			if apperrors.IsRejection(err) {
				w.logger.Debug("auto-withdraw skipped",
					"account_id", account.ID,
					"reason", apperrors.RejectionCode(err))
				return
			}
			w.logger.Error("auto-withdraw settlement failed",
				"account_id", account.ID,
				"amount", view.Profit,
				"error", err)
			return
		}
		w.logger.Info("auto-withdraw settled",
			"account_id", account.ID,
			"amount", view.Profit)
	})
	metrics.SweepScansTotal.WithLabelValues("auto_withdraw", "ok").Inc()
}

// RunAutoReinvests folds accrued profit into principal for every account
// that opted into automatic reinvestment
func (w *Worker) RunAutoReinvests(ctx context.Context) {
	accounts, err := w.lister.ListAutoReinvest(ctx)
	if err != nil {
		w.logger.Error("auto-reinvest listing failed", "error", err)
		metrics.SweepScansTotal.WithLabelValues("auto_reinvest", "error").Inc()
		return
	}

	w.forEach(ctx, accounts, func(ctx context.Context, account *entities.Account) {
		if _, err := w.settler.Reinvest(ctx, account.ID); err != nil {
			if apperrors.IsRejection(err) {
				w.logger.Debug("auto-reinvest skipped",
					"account_id", account.ID,
					"reason", apperrors.RejectionCode(err))
				return
			}
			w.logger.Error("auto-reinvest failed",
				"account_id", account.ID,
				"error", err)
			return
		}
		w.logger.Info("auto-reinvest settled", "account_id", account.ID)
	})
	metrics.SweepScansTotal.WithLabelValues("auto_reinvest", "ok").Inc()
}

// SendReminders nudges accounts that were provisioned but never funded
func (w *Worker) SendReminders(ctx context.Context) {
	accounts, err := w.lister.ListIdle(ctx)
	if err != nil {
		w.logger.Error("reminder listing failed", "error", err)
		metrics.SweepScansTotal.WithLabelValues("reminder", "error").Inc()
		return
	}

	w.forEach(ctx, accounts, func(ctx context.Context, account *entities.Account) {
		msg := "your deposit address is ready and waiting for its first deposit: " + account.DepositAddress
		if err := w.notifier.Notify(ctx, account.ID, account.ExternalID, msg); err != nil {
			w.logger.Warn("reminder delivery failed",
				"account_id", account.ID,
				"error", err)
		}
	})
	metrics.SweepScansTotal.WithLabelValues("reminder", "ok").Inc()
	w.logger.Info("reminder pass finished", "accounts", len(accounts))
}

// RunReconciliation recovers stale pending withdrawal intents
func (w *Worker) RunReconciliation(ctx context.Context) {
	if err := w.reconciler.Run(ctx); err != nil {
		w.logger.Error("reconciliation pass failed", "error", err)
		metrics.SweepScansTotal.WithLabelValues("reconcile", "error").Inc()
		return
	}
	metrics.SweepScansTotal.WithLabelValues("reconcile", "ok").Inc()
}

// forEach fans accounts out to the configured concurrency bound
func (w *Worker) forEach(ctx context.Context, accounts []*entities.Account, fn func(context.Context, *entities.Account)) {
	sem := make(chan struct{}, w.config.Concurrency)
	var wg sync.WaitGroup

	for _, account := range accounts {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(account *entities.Account) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, account)
		}(account)
	}
	wg.Wait()
}
