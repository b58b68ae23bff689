package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
)

type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) GetByID(ctx context.Context, accountID uuid.UUID) (*entities.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountStore) BeginAccountTx(ctx context.Context, accountID uuid.UUID) (AccountTx, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(AccountTx), args.Error(1)
}

type MockAccountTx struct {
	mock.Mock
	account *entities.Account
}

func (m *MockAccountTx) Account() *entities.Account {
	return m.account
}

func (m *MockAccountTx) CompleteWithdrawal(ctx context.Context, intentID uuid.UUID, newBalance decimal.Decimal, settledAt time.Time) error {
	args := m.Called(ctx, intentID, newBalance, settledAt)
	return args.Error(0)
}

func (m *MockAccountTx) ApplyDeposit(ctx context.Context, amount decimal.Decimal, signature string, depositedAt time.Time) (*entities.LedgerTransaction, error) {
	args := m.Called(ctx, amount, signature, depositedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerTransaction), args.Error(1)
}

func (m *MockAccountTx) ApplyReinvest(ctx context.Context, newPrincipal decimal.Decimal, reinvestedAt time.Time) (*entities.LedgerTransaction, error) {
	args := m.Called(ctx, newPrincipal, reinvestedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerTransaction), args.Error(1)
}

func (m *MockAccountTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockAccountTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) Create(ctx context.Context, txn *entities.LedgerTransaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTransactionStore) ListByAccount(ctx context.Context, accountID uuid.UUID, filter entities.TransactionFilter) ([]*entities.LedgerTransaction, error) {
	args := m.Called(ctx, accountID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LedgerTransaction), args.Error(1)
}

func (m *MockTransactionStore) ListPendingWithdrawals(ctx context.Context, olderThan time.Duration) ([]*entities.LedgerTransaction, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LedgerTransaction), args.Error(1)
}

type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockChainClient) EstimateFee(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockChainClient) MinimumReserve(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockChainClient) SubmitTransfer(ctx context.Context, from, to string, amount decimal.Decimal, signingKey string) (string, error) {
	args := m.Called(ctx, from, to, amount, signingKey)
	return args.String(0), args.Error(1)
}

func (m *MockChainClient) WaitForConfirmation(ctx context.Context, signature string, pollInterval, timeout time.Duration) error {
	args := m.Called(ctx, signature, pollInterval, timeout)
	return args.Error(0)
}

func (m *MockChainClient) GetTransferStatus(ctx context.Context, signature string) (string, error) {
	args := m.Called(ctx, signature)
	return args.String(0), args.Error(1)
}

func (m *MockChainClient) ProvisionWallet(ctx context.Context) (string, string, error) {
	args := m.Called(ctx)
	return args.String(0), args.String(1), args.Error(2)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, accountID uuid.UUID, externalID, message string) error {
	args := m.Called(ctx, accountID, externalID, message)
	return args.Error(0)
}

type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) Alert(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

type MockReferralPayer struct {
	mock.Mock
}

func (m *MockReferralPayer) PayBonus(ctx context.Context, depositor *entities.Account, depositAmount decimal.Decimal) {
	m.Called(ctx, depositor, depositAmount)
}

type MockAccountDirectory struct {
	mock.Mock
}

func (m *MockAccountDirectory) Create(ctx context.Context, account *entities.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountDirectory) GetByID(ctx context.Context, accountID uuid.UUID) (*entities.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountDirectory) GetByExternalID(ctx context.Context, externalID string) (*entities.Account, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountDirectory) UpdatePolicy(ctx context.Context, accountID uuid.UUID, autoWithdrawal, autoReinvest bool) error {
	args := m.Called(ctx, accountID, autoWithdrawal, autoReinvest)
	return args.Error(0)
}

func (m *MockAccountDirectory) UpdateBalanceSnapshot(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	args := m.Called(ctx, accountID, balance)
	return args.Error(0)
}
