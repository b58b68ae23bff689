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
	"github.com/harvest-service/harvest_service/pkg/crypto"
	"github.com/harvest-service/harvest_service/pkg/logger"
)

// AccountDirectory interface for account lookup and lifecycle
type AccountDirectory interface {
	Create(ctx context.Context, account *entities.Account) error
	GetByID(ctx context.Context, accountID uuid.UUID) (*entities.Account, error)
	GetByExternalID(ctx context.Context, externalID string) (*entities.Account, error)
	UpdatePolicy(ctx context.Context, accountID uuid.UUID, autoWithdrawal, autoReinvest bool) error
	UpdateBalanceSnapshot(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error
}

// AccountService provisions accounts and serves computed balance views
type AccountService struct {
	directory     AccountDirectory
	txStore       TransactionStore
	chain         ChainClient
	model         *accrual.Model
	keyPassphrase string
	logger        *logger.Logger
	now           func() time.Time
}

// NewAccountService creates an account service
func NewAccountService(
	directory AccountDirectory,
	txStore TransactionStore,
	chain ChainClient,
	model *accrual.Model,
	keyPassphrase string,
	log *logger.Logger,
) *AccountService {
	return &AccountService{
		directory:     directory,
		txStore:       txStore,
		chain:         chain,
		model:         model,
		keyPassphrase: keyPassphrase,
		logger:        log,
		now:           time.Now,
	}
}

// Create provisions an account for an external identity. Idempotent:
// an existing account for the same external ID is returned as is.
func (s *AccountService) Create(ctx context.Context, req *entities.CreateAccountRequest) (*entities.Account, error) {
	existing, err := s.directory.GetByExternalID(ctx, req.ExternalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrAccountNotFound) {
		return nil, err
	}

	address, secret, err := s.chain.ProvisionWallet(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "provision custodial wallet")
	}

	sealed, err := crypto.Encrypt(secret, s.keyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("seal custodial key: %w", err)
	}

	account := &entities.Account{
		ID:              uuid.New(),
		ExternalID:      req.ExternalID,
		DepositAddress:  address,
		EncryptedSecret: sealed,
		Principal:       decimal.Zero,
		LedgerBalance:   decimal.Zero,
		ReferredBy:      req.ReferredBy,
	}
	if err := s.directory.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account provisioned",
		"account_id", account.ID,
		"external_id", account.ExternalID,
		"deposit_address", account.DepositAddress)
	return account, nil
}

// Balance returns the computed balance view and refreshes the cached
// snapshot as a side effect
func (s *AccountService) Balance(ctx context.Context, accountID uuid.UUID) (*entities.AccountBalanceView, error) {
	account, err := s.directory.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	computedAt := s.now()
	balance := decimal.Zero
	anchor := account.GrowthAnchor()
	if anchor != nil {
		balance = s.model.Balance(account.Principal, *anchor, computedAt)
	}

	if err := s.directory.UpdateBalanceSnapshot(ctx, accountID, balance); err != nil {
		s.logger.Warn("balance snapshot refresh failed",
			"account_id", accountID,
			"error", err)
	}

	return &entities.AccountBalanceView{
		AccountID:    account.ID,
		Principal:    account.Principal,
		Balance:      balance,
		Profit:       decimal.Max(decimal.Zero, balance.Sub(account.Principal)),
		AnchorTime:   anchor,
		ComputedAt:   computedAt,
		DepositAddr:  account.DepositAddress,
		AutoWithdraw: account.AutoWithdrawal,
		AutoReinvest: account.AutoReinvest,
	}, nil
}

// UpdatePolicy toggles the background settlement flags, keeping any
// flag the request leaves unset
func (s *AccountService) UpdatePolicy(ctx context.Context, accountID uuid.UUID, req *entities.UpdateAccountPolicyRequest) (*entities.Account, error) {
	account, err := s.directory.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	autoWithdrawal := account.AutoWithdrawal
	autoReinvest := account.AutoReinvest
	if req.AutoWithdrawal != nil {
		autoWithdrawal = *req.AutoWithdrawal
	}
	if req.AutoReinvest != nil {
		autoReinvest = *req.AutoReinvest
	}

	if err := s.directory.UpdatePolicy(ctx, accountID, autoWithdrawal, autoReinvest); err != nil {
		return nil, err
	}

	account.AutoWithdrawal = autoWithdrawal
	account.AutoReinvest = autoReinvest
	return account, nil
}

// History returns the account's ledger history
func (s *AccountService) History(ctx context.Context, accountID uuid.UUID, filter entities.TransactionFilter) ([]*entities.LedgerTransaction, error) {
	if _, err := s.directory.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.txStore.ListByAccount(ctx, accountID, filter)
}
