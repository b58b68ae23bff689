package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
	"github.com/harvest-service/harvest_service/internal/domain/services/accrual"
	"github.com/harvest-service/harvest_service/pkg/crypto"
	"github.com/harvest-service/harvest_service/pkg/logger"
)

func newAccountService(directory *MockAccountDirectory, txStore *MockTransactionStore, chain *MockChainClient, now time.Time) *AccountService {
	svc := NewAccountService(directory, txStore, chain, accrual.NewModel(10), testPassphrase, logger.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestAccountCreate_ProvisionsWalletWithSealedKey(t *testing.T) {
	directory := new(MockAccountDirectory)
	chain := new(MockChainClient)

	directory.On("GetByExternalID", mock.Anything, "ext-new").Return(nil, apperrors.ErrAccountNotFound)
	chain.On("ProvisionWallet", mock.Anything).Return("fresh-addr", "fresh-secret", nil)
	directory.On("Create", mock.Anything, mock.MatchedBy(func(a *entities.Account) bool {
		return a.ExternalID == "ext-new" && a.DepositAddress == "fresh-addr" &&
			a.Principal.IsZero() && a.EncryptedSecret != "fresh-secret"
	})).Return(nil)

	svc := newAccountService(directory, new(MockTransactionStore), chain, time.Now())
	account, err := svc.Create(context.Background(), &entities.CreateAccountRequest{ExternalID: "ext-new"})

	require.NoError(t, err)
	assert.Equal(t, "fresh-addr", account.DepositAddress)

	// the stored secret must round-trip through the sealing passphrase
	plain, err := crypto.Decrypt(account.EncryptedSecret, testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, "fresh-secret", plain)
}

func TestAccountCreate_IsIdempotentPerExternalID(t *testing.T) {
	existing, _ := fundedAccount(1_000_000)
	directory := new(MockAccountDirectory)
	chain := new(MockChainClient)

	directory.On("GetByExternalID", mock.Anything, existing.ExternalID).Return(existing, nil)

	svc := newAccountService(directory, new(MockTransactionStore), chain, time.Now())
	account, err := svc.Create(context.Background(), &entities.CreateAccountRequest{ExternalID: existing.ExternalID})

	require.NoError(t, err)
	assert.Equal(t, existing.ID, account.ID)
	chain.AssertNotCalled(t, "ProvisionWallet", mock.Anything)
	directory.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAccountBalance_ComputesViewAndRefreshesSnapshot(t *testing.T) {
	account, now := fundedAccount(1_000_000) // one full doubling period elapsed

	directory := new(MockAccountDirectory)
	directory.On("GetByID", mock.Anything, account.ID).Return(account, nil)
	directory.On("UpdateBalanceSnapshot", mock.Anything, account.ID, mock.MatchedBy(func(b decimal.Decimal) bool {
		return b.Equal(decimal.NewFromInt(2_000_000))
	})).Return(nil)

	svc := newAccountService(directory, new(MockTransactionStore), new(MockChainClient), now)
	view, err := svc.Balance(context.Background(), account.ID)

	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(decimal.NewFromInt(2_000_000)))
	assert.True(t, view.Profit.Equal(decimal.NewFromInt(1_000_000)))
	assert.Equal(t, now, view.ComputedAt)
	directory.AssertExpectations(t)
}

func TestAccountBalance_NeverDepositedIsZero(t *testing.T) {
	account := &entities.Account{
		ID:             uuid.New(),
		ExternalID:     "ext-idle",
		DepositAddress: "idle-addr",
		Principal:      decimal.Zero,
	}
	directory := new(MockAccountDirectory)
	directory.On("GetByID", mock.Anything, account.ID).Return(account, nil)
	directory.On("UpdateBalanceSnapshot", mock.Anything, account.ID, mock.Anything).Return(nil)

	svc := newAccountService(directory, new(MockTransactionStore), new(MockChainClient), time.Now())
	view, err := svc.Balance(context.Background(), account.ID)

	require.NoError(t, err)
	assert.True(t, view.Balance.IsZero())
	assert.True(t, view.Profit.IsZero())
	assert.Nil(t, view.AnchorTime)
}

func TestAccountUpdatePolicy_MergesUnsetFlags(t *testing.T) {
	account, _ := fundedAccount(1_000_000)
	account.AutoReinvest = true

	directory := new(MockAccountDirectory)
	directory.On("GetByID", mock.Anything, account.ID).Return(account, nil)
	directory.On("UpdatePolicy", mock.Anything, account.ID, true, true).Return(nil)

	enable := true
	svc := newAccountService(directory, new(MockTransactionStore), new(MockChainClient), time.Now())
	updated, err := svc.UpdatePolicy(context.Background(), account.ID, &entities.UpdateAccountPolicyRequest{
		AutoWithdrawal: &enable, // AutoReinvest left unset, keeps true
	})

	require.NoError(t, err)
	assert.True(t, updated.AutoWithdrawal)
	assert.True(t, updated.AutoReinvest)
	directory.AssertExpectations(t)
}

func TestAccountHistory_UnknownAccount(t *testing.T) {
	accountID := uuid.New()
	directory := new(MockAccountDirectory)
	txStore := new(MockTransactionStore)
	directory.On("GetByID", mock.Anything, accountID).Return(nil, apperrors.ErrAccountNotFound)

	svc := newAccountService(directory, txStore, new(MockChainClient), time.Now())
	_, err := svc.History(context.Background(), accountID, entities.TransactionFilter{})

	assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
	txStore.AssertNotCalled(t, "ListByAccount", mock.Anything, mock.Anything, mock.Anything)
}
