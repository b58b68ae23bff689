package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
)

// AccountTx is a database transaction holding a row lock on one account.
// All balance mutations for that account happen through it so the debit
// or credit commits atomically with its audit row.
type AccountTx struct {
	tx      *sqlx.Tx
	account *entities.Account
}

// Account returns the row as read under the lock
func (t *AccountTx) Account() *entities.Account {
	return t.account
}

// CompleteWithdrawal finalizes a settled withdrawal: resets the growth
// anchor, writes the new balance snapshot, and flips the pending intent
// row to completed. The intent row must still be pending; a zero-row
// update means another pass already settled it and the caller must roll
// back rather than debit twice.
func (t *AccountTx) CompleteWithdrawal(ctx context.Context, intentID uuid.UUID, newBalance decimal.Decimal, settledAt time.Time) error {
	accountQuery := `
		UPDATE accounts
		SET principal_since = $1, last_withdrawal_at = $1, ledger_balance = $2, updated_at = $1
		WHERE id = $3
	`
	if _, err := t.tx.ExecContext(ctx, accountQuery, settledAt, newBalance, t.account.ID); err != nil {
		return fmt.Errorf("update account on withdrawal: %w", err)
	}

	intentQuery := `
		UPDATE ledger_transactions
		SET status = $1, balance_after = $2, completed_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := t.tx.ExecContext(ctx, intentQuery,
		entities.TransactionStatusCompleted, newBalance, settledAt,
		intentID, entities.TransactionStatusPending)
	if err != nil {
		return fmt.Errorf("complete withdrawal intent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete withdrawal intent rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("withdrawal intent %s: %w", intentID, apperrors.ErrIntentAlreadySettled)
	}

	return nil
}

// ApplyDeposit credits a confirmed sweep: principal grows by the swept
// amount, the growth anchor is set on the first-ever deposit, and a
// completed deposit row carrying the chain signature is inserted.
func (t *AccountTx) ApplyDeposit(ctx context.Context, amount decimal.Decimal, signature string, depositedAt time.Time) (*entities.LedgerTransaction, error) {
	newPrincipal := t.account.Principal.Add(amount)
	newBalance := t.account.LedgerBalance.Add(amount)

	accountQuery := `
		UPDATE accounts
		SET principal = $1,
		    principal_since = COALESCE(principal_since, $2),
		    ledger_balance = $3,
		    updated_at = $2
		WHERE id = $4
	`
	if _, err := t.tx.ExecContext(ctx, accountQuery, newPrincipal, depositedAt, newBalance, t.account.ID); err != nil {
		return nil, fmt.Errorf("update account on deposit: %w", err)
	}

	txn := &entities.LedgerTransaction{
		ID:                uuid.New(),
		AccountID:         t.account.ID,
		Kind:              entities.TransactionKindDeposit,
		Amount:            amount,
		ExternalSignature: &signature,
		BalanceAfter:      newBalance,
		Status:            entities.TransactionStatusCompleted,
		CreatedAt:         depositedAt,
		CompletedAt:       &depositedAt,
	}
	if err := t.insertTransaction(ctx, txn); err != nil {
		return nil, err
	}

	t.account.Principal = newPrincipal
	t.account.LedgerBalance = newBalance
	return txn, nil
}

// ApplyReinvest folds accrued profit into principal and restarts the
// growth clock. The new principal is the full recomputed balance.
func (t *AccountTx) ApplyReinvest(ctx context.Context, newPrincipal decimal.Decimal, reinvestedAt time.Time) (*entities.LedgerTransaction, error) {
	profit := newPrincipal.Sub(t.account.Principal)

	accountQuery := `
		UPDATE accounts
		SET principal = $1, principal_since = $2, last_withdrawal_at = $2,
		    ledger_balance = $1, updated_at = $2
		WHERE id = $3
	`
	if _, err := t.tx.ExecContext(ctx, accountQuery, newPrincipal, reinvestedAt, t.account.ID); err != nil {
		return nil, fmt.Errorf("update account on reinvest: %w", err)
	}

	txn := &entities.LedgerTransaction{
		ID:           uuid.New(),
		AccountID:    t.account.ID,
		Kind:         entities.TransactionKindReinvest,
		Amount:       profit,
		BalanceAfter: newPrincipal,
		Status:       entities.TransactionStatusCompleted,
		CreatedAt:    reinvestedAt,
		CompletedAt:  &reinvestedAt,
	}
	if err := t.insertTransaction(ctx, txn); err != nil {
		return nil, err
	}

	t.account.Principal = newPrincipal
	t.account.LedgerBalance = newPrincipal
	return txn, nil
}

func (t *AccountTx) insertTransaction(ctx context.Context, txn *entities.LedgerTransaction) error {
	query := `
		INSERT INTO ledger_transactions (id, account_id, kind, amount,
			external_signature, balance_after, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := t.tx.ExecContext(ctx, query,
		txn.ID, txn.AccountID, txn.Kind, txn.Amount,
		txn.ExternalSignature, txn.BalanceAfter, txn.Status,
		txn.CreatedAt, txn.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert ledger transaction: %w", err)
	}
	return nil
}

// Commit commits the transaction and releases the row lock
func (t *AccountTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit account transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit.
func (t *AccountTx) Rollback() error {
	return t.tx.Rollback()
}
