package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
	"github.com/harvest-service/harvest_service/internal/domain/services/lockguard"
	"github.com/harvest-service/harvest_service/pkg/crypto"
	"github.com/harvest-service/harvest_service/pkg/logger"
	"github.com/harvest-service/harvest_service/pkg/metrics"
)

// ReferralPayer interface for the bonus cascade triggered by deposits
type ReferralPayer interface {
	PayBonus(ctx context.Context, depositor *entities.Account, depositAmount decimal.Decimal)
}

// DepositConfig holds the sweep pipeline parameters
type DepositConfig struct {
	MinDeposit      decimal.Decimal
	TreasuryAddress string
	KeyPassphrase   string
	ConfirmPoll     time.Duration
	ConfirmTimeout  time.Duration
}

// DepositService sweeps funds observed in a custodial deposit address
// into the treasury and credits the account's principal.
type DepositService struct {
	store    AccountStore
	chain    ChainClient
	guard    lockguard.Guard
	referral ReferralPayer
	notifier Notifier
	alerter  Alerter
	config   DepositConfig
	logger   *logger.Logger
	now      func() time.Time
}

// NewDepositService creates a deposit ingestion service
func NewDepositService(
	store AccountStore,
	chain ChainClient,
	guard lockguard.Guard,
	referral ReferralPayer,
	notifier Notifier,
	alerter Alerter,
	config DepositConfig,
	log *logger.Logger,
) *DepositService {
	return &DepositService{
		store:    store,
		chain:    chain,
		guard:    guard,
		referral: referral,
		notifier: notifier,
		alerter:  alerter,
		config:   config,
		logger:   log,
		now:      time.Now,
	}
}

// Sweep moves the spendable balance of the account's deposit address to
// the treasury, then credits principal in one local transaction. The
// referral bonus cascade runs after the commit and cannot roll it back.
func (s *DepositService) Sweep(ctx context.Context, accountID uuid.UUID) (*entities.SweepResult, error) {
	acquired, err := s.guard.Acquire(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("acquire settlement lock: %w", err)
	}
	if !acquired {
		metrics.LockContentionTotal.Inc()
		return nil, apperrors.ErrLockContention
	}
	defer s.releaseGuard(accountID)

	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	observed, err := s.chain.GetBalance(ctx, account.DepositAddress)
	if err != nil {
		return nil, apperrors.Wrap(err, "query deposit address balance")
	}

	fee, err := s.chain.EstimateFee(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "estimate network fee")
	}
	reserve, err := s.chain.MinimumReserve(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "query minimum reserve")
	}

	sweep := observed.Sub(fee).Sub(reserve)
	if !sweep.IsPositive() {
		return nil, apperrors.ErrNothingToSweep
	}
	if sweep.LessThan(s.config.MinDeposit) {
		return nil, apperrors.ErrBelowMinimum
	}

	signingKey, err := crypto.Decrypt(account.EncryptedSecret, s.config.KeyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("unseal account key: %w", err)
	}

	// Same terminal-state discipline as withdrawals: once submitted the
	// sweep runs to completion regardless of the caller.
	runCtx := context.WithoutCancel(ctx)

	signature, err := s.chain.SubmitTransfer(runCtx, account.DepositAddress, s.config.TreasuryAddress, sweep, signingKey)
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues(string(entities.TransactionKindDeposit), string(entities.SettlementOutcomeTransferFailed)).Inc()
		return nil, apperrors.Wrap(err, "submit sweep transfer")
	}

	if err := s.chain.WaitForConfirmation(runCtx, signature, s.config.ConfirmPoll, s.config.ConfirmTimeout); err != nil {
		s.alertSweepFailure(accountID, signature, err)
		metrics.SettlementsTotal.WithLabelValues(string(entities.TransactionKindDeposit), string(entities.SettlementOutcomeTransferFailed)).Inc()
		return nil, apperrors.Wrap(err, "confirm sweep transfer")
	}

	tx, err := s.store.BeginAccountTx(runCtx, accountID)
	if err != nil {
		s.alertSweepFailure(accountID, signature, err)
		return nil, err
	}
	defer tx.Rollback()

	txn, err := tx.ApplyDeposit(runCtx, sweep, signature, s.now())
	if err != nil {
		s.alertSweepFailure(accountID, signature, err)
		return nil, fmt.Errorf("apply deposit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.alertSweepFailure(accountID, signature, err)
		return nil, fmt.Errorf("commit deposit transaction: %w", err)
	}

	metrics.SettlementsTotal.WithLabelValues(string(entities.TransactionKindDeposit), string(entities.SettlementOutcomeCommitted)).Inc()
	s.logger.Info("deposit swept",
		"account_id", accountID,
		"amount", sweep,
		"fee", fee,
		"reserve", reserve,
		"signature", signature)

	s.referral.PayBonus(runCtx, tx.Account(), sweep)

	if err := s.notifier.Notify(runCtx, account.ID, account.ExternalID,
		fmt.Sprintf("Your deposit of %s was credited.", sweep)); err != nil {
		s.logger.Warn("notification delivery failed",
			"account_id", account.ID,
			"error", err)
	}

	return &entities.SweepResult{
		Swept:       sweep,
		Fee:         fee,
		Reserve:     reserve,
		Transaction: txn,
	}, nil
}

func (s *DepositService) releaseGuard(accountID uuid.UUID) {
	if err := s.guard.Release(context.Background(), accountID); err != nil {
		s.logger.Warn("failed to release settlement lock",
			"account_id", accountID,
			"error", err)
	}
}

func (s *DepositService) alertSweepFailure(accountID uuid.UUID, signature string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	message := fmt.Sprintf("deposit sweep for account %s failed after submit, signature %s: %v", accountID, signature, cause)
	if err := s.alerter.Alert(ctx, message); err != nil {
		s.logger.Error("operator alert delivery failed", "error", err)
	}
}
