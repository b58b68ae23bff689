package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
	"github.com/harvest-service/harvest_service/pkg/logger"
	"github.com/harvest-service/harvest_service/pkg/metrics"
	"github.com/harvest-service/harvest_service/pkg/retry"
)

// ReferralConfig holds the bonus cascade parameters
type ReferralConfig struct {
	Rate            decimal.Decimal
	TreasuryAddress string
	TreasuryKey     string
	ConfirmPoll     time.Duration
	ConfirmTimeout  time.Duration
	RetryPolicy     retry.Policy
}

// ReferralService pays referral bonuses after committed deposits. The
// cascade is strictly best-effort: a failed bonus is retried and logged
// but never unwinds or fails the deposit that triggered it.
type ReferralService struct {
	store   AccountStore
	txStore TransactionStore
	chain   ChainClient
	config  ReferralConfig
	logger  *logger.Logger
	now     func() time.Time
}

// NewReferralService creates a referral bonus service
func NewReferralService(
	store AccountStore,
	txStore TransactionStore,
	chain ChainClient,
	config ReferralConfig,
	log *logger.Logger,
) *ReferralService {
	return &ReferralService{
		store:   store,
		txStore: txStore,
		chain:   chain,
		config:  config,
		logger:  log,
		now:     time.Now,
	}
}

// PayBonus pays the referrer of a depositor their cut of the deposit.
// Never returns an error; all failure paths end in a log line.
func (s *ReferralService) PayBonus(ctx context.Context, depositor *entities.Account, depositAmount decimal.Decimal) {
	if depositor.ReferredBy == nil {
		return
	}

	bonus := depositAmount.Mul(s.config.Rate).Floor()
	if !bonus.IsPositive() {
		return
	}

	referrer, err := s.store.GetByID(ctx, *depositor.ReferredBy)
	if err != nil {
		s.logger.Warn("referral bonus skipped, referrer not loadable",
			"depositor_id", depositor.ID,
			"referrer_id", depositor.ReferredBy,
			"error", err)
		return
	}

	retrier := retry.NewRetrier(s.config.RetryPolicy, s.logger.Zap())
	var signature string
	err = retrier.Do(ctx, func() error {
		sig, submitErr := s.chain.SubmitTransfer(ctx, s.config.TreasuryAddress, referrer.DepositAddress, bonus, s.config.TreasuryKey)
		if submitErr != nil {
			return fmt.Errorf("submit referral bonus: %w", submitErr)
		}
		signature = sig
		return nil
	})
	if err != nil {
		s.logger.Error("referral bonus submission failed",
			"depositor_id", depositor.ID,
			"referrer_id", referrer.ID,
			"bonus", bonus,
			"error", err)
		return
	}

	if err := s.chain.WaitForConfirmation(ctx, signature, s.config.ConfirmPoll, s.config.ConfirmTimeout); err != nil {
		s.logger.Error("referral bonus confirmation failed",
			"depositor_id", depositor.ID,
			"referrer_id", referrer.ID,
			"signature", signature,
			"error", err)
		return
	}

	settledAt := s.now()
	txn := &entities.LedgerTransaction{
		ID:                uuid.New(),
		AccountID:         referrer.ID,
		Kind:              entities.TransactionKindReferralBonus,
		Amount:            bonus,
		ExternalSignature: &signature,
		BalanceAfter:      referrer.LedgerBalance,
		Status:            entities.TransactionStatusCompleted,
		CreatedAt:         settledAt,
		CompletedAt:       &settledAt,
	}
	if err := s.txStore.Create(ctx, txn); err != nil {
		s.logger.Error("referral bonus paid but not recorded",
			"referrer_id", referrer.ID,
			"signature", signature,
			"error", err)
		return
	}

	metrics.SettlementsTotal.WithLabelValues(string(entities.TransactionKindReferralBonus), string(entities.SettlementOutcomeCommitted)).Inc()
	s.logger.Info("referral bonus paid",
		"depositor_id", depositor.ID,
		"referrer_id", referrer.ID,
		"bonus", bonus,
		"signature", signature)
}
