package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
	"github.com/harvest-service/harvest_service/internal/domain/services/accrual"
	"github.com/harvest-service/harvest_service/internal/domain/services/lockguard"
	"github.com/harvest-service/harvest_service/pkg/logger"
	"github.com/harvest-service/harvest_service/pkg/metrics"
)

// ErrTransferDropped mirrors the chain reporting no record of a
// submitted transfer once the reconciliation window has passed
var ErrTransferDropped = errors.New("transfer dropped by chain")

// ReconciliationConfig holds the recovery pass parameters
type ReconciliationConfig struct {
	// MinAge is how old a pending intent must be before the pass
	// touches it, so in-flight settlements are left alone.
	MinAge time.Duration
}

// ReconciliationService recovers withdrawals whose external transfer
// was submitted but whose local commit never happened, typically after
// a crash between chain confirmation and the ledger write. Recovery is
// keyed on the persisted chain signature and settles each intent at
// most once; resubmitting is never an option here.
type ReconciliationService struct {
	store   AccountStore
	txStore TransactionStore
	chain   ChainClient
	guard   lockguard.Guard
	model   *accrual.Model
	config  ReconciliationConfig
	logger  *logger.Logger
	now     func() time.Time
}

// NewReconciliationService creates a reconciliation service
func NewReconciliationService(
	store AccountStore,
	txStore TransactionStore,
	chain ChainClient,
	guard lockguard.Guard,
	model *accrual.Model,
	config ReconciliationConfig,
	log *logger.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		store:   store,
		txStore: txStore,
		chain:   chain,
		guard:   guard,
		model:   model,
		config:  config,
		logger:  log,
		now:     time.Now,
	}
}

// Run reconciles all stale pending withdrawal intents by observing the
// chain state of their signatures
func (s *ReconciliationService) Run(ctx context.Context) error {
	intents, err := s.txStore.ListPendingWithdrawals(ctx, s.config.MinAge)
	if err != nil {
		metrics.ReconciliationRunsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("list pending withdrawals: %w", err)
	}
	if len(intents) == 0 {
		metrics.ReconciliationRunsTotal.WithLabelValues("clean").Inc()
		return nil
	}

	var failed int
	for _, intent := range intents {
		if err := s.reconcile(ctx, intent); err != nil {
			failed++
			s.logger.Error("reconciliation failed for intent",
				"transaction_id", intent.ID,
				"account_id", intent.AccountID,
				"error", err)
		}
	}

	if failed > 0 {
		metrics.ReconciliationRunsTotal.WithLabelValues("partial").Inc()
		return fmt.Errorf("reconciliation left %d of %d intents unresolved", failed, len(intents))
	}
	metrics.ReconciliationRunsTotal.WithLabelValues("recovered").Inc()
	return nil
}

func (s *ReconciliationService) reconcile(ctx context.Context, intent *entities.LedgerTransaction) error {
	if intent.ExternalSignature == nil {
		return fmt.Errorf("pending intent %s has no signature", intent.ID)
	}
	signature := *intent.ExternalSignature

	status, err := s.chain.GetTransferStatus(ctx, signature)
	switch {
	case err == nil && status == "confirmed":
		return s.complete(ctx, intent)
	case err == nil && status == "failed":
		return s.fail(ctx, intent, ErrTransferDropped)
	case err == nil:
		// still pending on chain, try again next pass
		return nil
	case errors.Is(err, apperrors.ErrTransferNotFound):
		// a transfer the chain has never seen after the minimum age
		// was dropped before acceptance
		return s.fail(ctx, intent, ErrTransferDropped)
	default:
		return fmt.Errorf("query transfer status: %w", err)
	}
}

func (s *ReconciliationService) complete(ctx context.Context, intent *entities.LedgerTransaction) error {
	acquired, err := s.guard.Acquire(ctx, intent.AccountID)
	if err != nil {
		return fmt.Errorf("acquire settlement lock: %w", err)
	}
	if !acquired {
		// a live settlement owns the account, defer to the next pass
		return nil
	}
	defer func() {
		if err := s.guard.Release(context.Background(), intent.AccountID); err != nil {
			s.logger.Warn("failed to release settlement lock",
				"account_id", intent.AccountID,
				"error", err)
		}
	}()

	tx, err := s.store.BeginAccountTx(ctx, intent.AccountID)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	account := tx.Account()
	settledAt := s.now()
	newBalance := account.Principal
	if anchor := account.GrowthAnchor(); anchor != nil {
		newBalance = s.model.Balance(account.Principal, *anchor, settledAt).Sub(intent.Amount)
	}
	if newBalance.IsNegative() {
		newBalance = decimal.Zero
	}

	if err := tx.CompleteWithdrawal(ctx, intent.ID, newBalance, settledAt); err != nil {
		if errors.Is(err, apperrors.ErrIntentAlreadySettled) {
			// settled by a concurrent pass; nothing to do
			s.logger.Info("intent already settled", "transaction_id", intent.ID)
			return nil
		}
		return fmt.Errorf("complete reconciled withdrawal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconciled withdrawal: %w", err)
	}

	metrics.SettlementsTotal.WithLabelValues(string(entities.TransactionKindWithdrawal), string(entities.SettlementOutcomeCommitted)).Inc()
	s.logger.Info("reconciled confirmed withdrawal",
		"transaction_id", intent.ID,
		"account_id", intent.AccountID,
		"amount", intent.Amount,
		"signature", *intent.ExternalSignature)
	return nil
}

func (s *ReconciliationService) fail(ctx context.Context, intent *entities.LedgerTransaction, cause error) error {
	if err := s.txStore.MarkFailed(ctx, intent.ID); err != nil {
		return fmt.Errorf("mark intent failed: %w", err)
	}
	metrics.SettlementsTotal.WithLabelValues(string(entities.TransactionKindWithdrawal), string(entities.SettlementOutcomeTransferFailed)).Inc()
	s.logger.Warn("marked dropped withdrawal failed",
		"transaction_id", intent.ID,
		"account_id", intent.AccountID,
		"cause", cause)
	return nil
}
