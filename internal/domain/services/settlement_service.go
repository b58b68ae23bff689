package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
	"github.com/harvest-service/harvest_service/internal/domain/services/accrual"
	"github.com/harvest-service/harvest_service/internal/domain/services/lockguard"
	"github.com/harvest-service/harvest_service/pkg/logger"
	"github.com/harvest-service/harvest_service/pkg/metrics"
)

// AccountStore interface for account persistence
type AccountStore interface {
	GetByID(ctx context.Context, accountID uuid.UUID) (*entities.Account, error)
	BeginAccountTx(ctx context.Context, accountID uuid.UUID) (AccountTx, error)
}

// AccountTx is a row-locked transaction over a single account. The lock
// is held from BeginAccountTx until Commit or Rollback, spanning the
// external transfer in between.
type AccountTx interface {
	Account() *entities.Account
	CompleteWithdrawal(ctx context.Context, intentID uuid.UUID, newBalance decimal.Decimal, settledAt time.Time) error
	ApplyDeposit(ctx context.Context, amount decimal.Decimal, signature string, depositedAt time.Time) (*entities.LedgerTransaction, error)
	ApplyReinvest(ctx context.Context, newPrincipal decimal.Decimal, reinvestedAt time.Time) (*entities.LedgerTransaction, error)
	Commit() error
	Rollback() error
}

// TransactionStore interface for ledger transaction persistence
type TransactionStore interface {
	Create(ctx context.Context, txn *entities.LedgerTransaction) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, filter entities.TransactionFilter) ([]*entities.LedgerTransaction, error)
	ListPendingWithdrawals(ctx context.Context, olderThan time.Duration) ([]*entities.LedgerTransaction, error)
}

// ChainClient interface for the external ledger leg
type ChainClient interface {
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
	EstimateFee(ctx context.Context) (decimal.Decimal, error)
	MinimumReserve(ctx context.Context) (decimal.Decimal, error)
	SubmitTransfer(ctx context.Context, from, to string, amount decimal.Decimal, signingKey string) (string, error)
	WaitForConfirmation(ctx context.Context, signature string, pollInterval, timeout time.Duration) error
	GetTransferStatus(ctx context.Context, signature string) (string, error)
	ProvisionWallet(ctx context.Context) (address, secret string, err error)
}

// Notifier interface for the front-end notification sink
type Notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, externalID, message string) error
}

// Alerter interface for the operator alert channel
type Alerter interface {
	Alert(ctx context.Context, message string) error
}

// SettlementConfig holds the withdrawal pipeline parameters
type SettlementConfig struct {
	MinWithdrawal   decimal.Decimal
	TreasuryAddress string
	TreasuryKey     string
	ConfirmPoll     time.Duration
	ConfirmTimeout  time.Duration
}

// SettlementService runs the withdrawal and reinvest pipelines. For any
// single account at most one pipeline is in flight: the guard rejects
// concurrent attempts up front, and the account row lock held across
// the external transfer makes the balance re-check and the final debit
// atomic.
type SettlementService struct {
	store    AccountStore
	txStore  TransactionStore
	chain    ChainClient
	guard    lockguard.Guard
	notifier Notifier
	alerter  Alerter
	model    *accrual.Model
	config   SettlementConfig
	logger   *logger.Logger
	now      func() time.Time
}

// NewSettlementService creates a settlement service
func NewSettlementService(
	store AccountStore,
	txStore TransactionStore,
	chain ChainClient,
	guard lockguard.Guard,
	notifier Notifier,
	alerter Alerter,
	model *accrual.Model,
	config SettlementConfig,
	log *logger.Logger,
) *SettlementService {
	return &SettlementService{
		store:    store,
		txStore:  txStore,
		chain:    chain,
		guard:    guard,
		notifier: notifier,
		alerter:  alerter,
		model:    model,
		config:   config,
		logger:   log,
		now:      time.Now,
	}
}

// Withdraw settles a withdrawal of accrued profit to the account's
// on-chain address. The external transfer is submitted and confirmed
// before the local ledger commits; a confirmation timeout leaves the
// pending intent row for the reconciliation pass and never resubmits.
func (s *SettlementService) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*entities.SettlementResult, error) {
	if amount.LessThan(s.config.MinWithdrawal) {
		s.recordOutcome(entities.TransactionKindWithdrawal, entities.SettlementOutcomeRejected)
		return nil, apperrors.ErrBelowMinimum
	}

	acquired, err := s.guard.Acquire(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("acquire settlement lock: %w", err)
	}
	if !acquired {
		metrics.LockContentionTotal.Inc()
		s.recordOutcome(entities.TransactionKindWithdrawal, entities.SettlementOutcomeRejected)
		return nil, apperrors.ErrLockContention
	}
	defer s.releaseGuard(accountID)

	tx, err := s.store.BeginAccountTx(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account := tx.Account()
	anchor := account.GrowthAnchor()
	if anchor == nil {
		s.recordOutcome(entities.TransactionKindWithdrawal, entities.SettlementOutcomeRejected)
		return nil, apperrors.ErrInsufficientBalance
	}

	// Mandatory re-check under the row lock; pre-validation by the
	// caller happened before time passed and before the lock was held.
	verifiedAt := s.now()
	balance := s.model.Balance(account.Principal, *anchor, verifiedAt)
	profit := balance.Sub(account.Principal)
	if amount.GreaterThan(profit) {
		s.recordOutcome(entities.TransactionKindWithdrawal, entities.SettlementOutcomeRejected)
		return nil, apperrors.ErrInsufficientBalance
	}

	treasuryBalance, err := s.chain.GetBalance(ctx, s.config.TreasuryAddress)
	if err != nil {
		return nil, apperrors.Wrap(err, "query treasury balance")
	}
	if treasuryBalance.LessThan(amount) {
		s.alert(fmt.Sprintf("treasury underfunded: balance %s, withdrawal of %s requested for account %s",
			treasuryBalance, amount, accountID))
		s.recordOutcome(entities.TransactionKindWithdrawal, entities.SettlementOutcomeRejected)
		return nil, apperrors.ErrTreasuryUnderfunded
	}

	// Past this point the pipeline runs to a terminal state even if the
	// caller goes away; a submitted transfer cannot be recalled.
	runCtx := context.WithoutCancel(ctx)

	signature, err := s.chain.SubmitTransfer(runCtx, s.config.TreasuryAddress, account.DepositAddress, amount, s.config.TreasuryKey)
	if err != nil {
		s.recordOutcome(entities.TransactionKindWithdrawal, entities.SettlementOutcomeTransferFailed)
		return nil, apperrors.Wrap(err, "submit withdrawal transfer")
	}

	// Record the intent on a separate connection so the signature
	// survives a crash before the row-locked commit below.
	intent := &entities.LedgerTransaction{
		ID:                uuid.New(),
		AccountID:         accountID,
		Kind:              entities.TransactionKindWithdrawal,
		Amount:            amount,
		ExternalSignature: &signature,
		BalanceAfter:      decimal.Zero,
		Status:            entities.TransactionStatusPending,
		CreatedAt:         s.now(),
	}
	if err := s.txStore.Create(runCtx, intent); err != nil {
		s.alert(fmt.Sprintf("withdrawal intent for account %s could not be recorded after submit, signature %s: %v",
			accountID, signature, err))
		s.logger.Error("withdrawal intent write failed after submit",
			"account_id", accountID,
			"signature", signature,
			"error", err)
	}

	switch err := s.chain.WaitForConfirmation(runCtx, signature, s.config.ConfirmPoll, s.config.ConfirmTimeout); {
	case err == nil:
		// confirmed, fall through to the local commit
	case errors.Is(err, apperrors.ErrConfirmationTimeout):
		s.alert(fmt.Sprintf("withdrawal confirmation timed out for account %s, signature %s; awaiting reconciliation",
			accountID, signature))
		s.recordOutcome(entities.TransactionKindWithdrawal, entities.SettlementOutcomeAwaitingReconcile)
		return &entities.SettlementResult{Outcome: entities.SettlementOutcomeAwaitingReconcile, Transaction: intent},
			apperrors.ErrConfirmationTimeout
	default:
		if markErr := s.txStore.MarkFailed(runCtx, intent.ID); markErr != nil {
			s.logger.Error("failed to mark dropped withdrawal",
				"transaction_id", intent.ID,
				"error", markErr)
		}
		s.recordOutcome(entities.TransactionKindWithdrawal, entities.SettlementOutcomeTransferFailed)
		return nil, apperrors.Wrap(err, "withdrawal transfer failed on chain")
	}

	settledAt := s.now()
	newBalance := balance.Sub(amount)
	if err := tx.CompleteWithdrawal(runCtx, intent.ID, newBalance, settledAt); err != nil {
		return nil, fmt.Errorf("commit withdrawal ledger: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.alert(fmt.Sprintf("withdrawal for account %s confirmed on chain (signature %s) but the ledger commit failed: %v",
			accountID, signature, err))
		return nil, fmt.Errorf("commit withdrawal transaction: %w", err)
	}

	s.recordOutcome(entities.TransactionKindWithdrawal, entities.SettlementOutcomeCommitted)
	s.logger.Info("withdrawal settled",
		"account_id", accountID,
		"amount", amount,
		"signature", signature,
		"new_balance", newBalance)

	intent.Status = entities.TransactionStatusCompleted
	intent.BalanceAfter = newBalance
	intent.CompletedAt = &settledAt
	s.notify(runCtx, account, fmt.Sprintf("Your withdrawal of %s settled.", amount))

	return &entities.SettlementResult{
		Outcome:     entities.SettlementOutcomeCommitted,
		Transaction: intent,
		NewBalance:  newBalance,
	}, nil
}

// Reinvest folds the account's accrued profit into its principal and
// restarts the growth clock. Entirely local: no external transfer.
func (s *SettlementService) Reinvest(ctx context.Context, accountID uuid.UUID) (*entities.SettlementResult, error) {
	acquired, err := s.guard.Acquire(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("acquire settlement lock: %w", err)
	}
	if !acquired {
		metrics.LockContentionTotal.Inc()
		s.recordOutcome(entities.TransactionKindReinvest, entities.SettlementOutcomeRejected)
		return nil, apperrors.ErrLockContention
	}
	defer s.releaseGuard(accountID)

	tx, err := s.store.BeginAccountTx(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account := tx.Account()
	anchor := account.GrowthAnchor()
	if anchor == nil {
		s.recordOutcome(entities.TransactionKindReinvest, entities.SettlementOutcomeRejected)
		return nil, apperrors.ErrInsufficientBalance
	}

	reinvestedAt := s.now()
	balance := s.model.Balance(account.Principal, *anchor, reinvestedAt)
	if !balance.GreaterThan(account.Principal) {
		s.recordOutcome(entities.TransactionKindReinvest, entities.SettlementOutcomeRejected)
		return nil, apperrors.ErrInsufficientBalance
	}

	txn, err := tx.ApplyReinvest(ctx, balance, reinvestedAt)
	if err != nil {
		return nil, fmt.Errorf("apply reinvest: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reinvest transaction: %w", err)
	}

	s.recordOutcome(entities.TransactionKindReinvest, entities.SettlementOutcomeCommitted)
	s.logger.Info("profit reinvested",
		"account_id", accountID,
		"new_principal", balance)

	s.notify(ctx, account, fmt.Sprintf("Your profit was reinvested. New principal: %s.", balance))

	return &entities.SettlementResult{
		Outcome:     entities.SettlementOutcomeCommitted,
		Transaction: txn,
		NewBalance:  balance,
	}, nil
}

func (s *SettlementService) releaseGuard(accountID uuid.UUID) {
	if err := s.guard.Release(context.Background(), accountID); err != nil {
		s.logger.Warn("failed to release settlement lock",
			"account_id", accountID,
			"error", err)
	}
}

func (s *SettlementService) recordOutcome(kind entities.TransactionKind, outcome entities.SettlementOutcome) {
	metrics.SettlementsTotal.WithLabelValues(string(kind), string(outcome)).Inc()
}

func (s *SettlementService) alert(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.alerter.Alert(ctx, message); err != nil {
		s.logger.Error("operator alert delivery failed", "error", err)
	}
}

func (s *SettlementService) notify(ctx context.Context, account *entities.Account, message string) {
	if err := s.notifier.Notify(ctx, account.ID, account.ExternalID, message); err != nil {
		s.logger.Warn("notification delivery failed",
			"account_id", account.ID,
			"error", err)
	}
}
