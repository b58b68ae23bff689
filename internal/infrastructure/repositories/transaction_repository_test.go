package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
)

func transactionRows(txns ...*entities.LedgerTransaction) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "account_id", "kind", "amount", "external_signature",
		"balance_after", "status", "created_at", "completed_at",
	})
	for _, txn := range txns {
		rows.AddRow(txn.ID, txn.AccountID, txn.Kind, txn.Amount,
			txn.ExternalSignature, txn.BalanceAfter, txn.Status,
			txn.CreatedAt, txn.CompletedAt)
	}
	return rows
}

func pendingWithdrawal(accountID uuid.UUID, signature string) *entities.LedgerTransaction {
	return &entities.LedgerTransaction{
		ID:                uuid.New(),
		AccountID:         accountID,
		Kind:              entities.TransactionKindWithdrawal,
		Amount:            decimal.NewFromInt(1_000_000),
		ExternalSignature: &signature,
		BalanceAfter:      decimal.Zero,
		Status:            entities.TransactionStatusPending,
		CreatedAt:         time.Now().Add(-time.Hour),
	}
}

func TestTransactionRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	txn := pendingWithdrawal(uuid.New(), "sig-1")

	mock.ExpectExec("INSERT INTO ledger_transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), txn)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_Create_RejectsInvalid(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewTransactionRepository(db)

	txn := pendingWithdrawal(uuid.New(), "sig-1")
	txn.Amount = decimal.Zero

	err := repo.Create(context.Background(), txn)

	require.Error(t, err)
}

func TestTransactionRepository_MarkFailed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	t.Run("flips pending to failed", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectExec("UPDATE ledger_transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.MarkFailed(context.Background(), id))
	})

	t.Run("rejects non-pending rows", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectExec("UPDATE ledger_transactions").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkFailed(context.Background(), id)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not pending")
	})
}

func TestTransactionRepository_ListByAccount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	accountID := uuid.New()
	txn := pendingWithdrawal(accountID, "sig-1")

	t.Run("unfiltered", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM ledger_transactions WHERE account_id =").
			WithArgs(accountID, 50).
			WillReturnRows(transactionRows(txn))

		txns, err := repo.ListByAccount(context.Background(), accountID, entities.TransactionFilter{})

		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, txn.ID, txns[0].ID)
	})

	t.Run("filtered by kind", func(t *testing.T) {
		kind := entities.TransactionKindDeposit
		mock.ExpectQuery("SELECT (.+) FROM ledger_transactions WHERE account_id = (.+) AND kind =").
			WithArgs(accountID, kind, 10).
			WillReturnRows(transactionRows())

		txns, err := repo.ListByAccount(context.Background(), accountID, entities.TransactionFilter{
			Kind:  &kind,
			Limit: 10,
		})

		require.NoError(t, err)
		assert.Empty(t, txns)
	})
}

func TestTransactionRepository_ListPendingWithdrawals(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	txn := pendingWithdrawal(uuid.New(), "sig-1")

	mock.ExpectQuery("SELECT (.+) FROM ledger_transactions").
		WithArgs(entities.TransactionStatusPending, entities.TransactionKindWithdrawal, sqlmock.AnyArg()).
		WillReturnRows(transactionRows(txn))

	txns, err := repo.ListPendingWithdrawals(context.Background(), 10*time.Minute)

	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, entities.TransactionStatusPending, txns[0].Status)
}
