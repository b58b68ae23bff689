package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
)

const transactionColumns = `
	id, account_id, kind, amount, external_signature, balance_after,
	status, created_at, completed_at`

// TransactionRepository handles ledger transaction persistence
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a ledger transaction row. Settlement writes its pending
// withdrawal intent through here on a connection separate from the
// row-locked account transaction, so the signature survives a crash
// before the local commit.
func (r *TransactionRepository) Create(ctx context.Context, txn *entities.LedgerTransaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	query := `
		INSERT INTO ledger_transactions (id, account_id, kind, amount,
			external_signature, balance_after, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		txn.ID, txn.AccountID, txn.Kind, txn.Amount,
		txn.ExternalSignature, txn.BalanceAfter, txn.Status,
		txn.CreatedAt, txn.CompletedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation on signature
				return fmt.Errorf("signature already recorded: %w", err)
			}
		}
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.LedgerTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE id = $1`

	var txn entities.LedgerTransaction
	if err := r.db.GetContext(ctx, &txn, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("transaction not found: %w", err)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &txn, nil
}

// GetBySignature retrieves a transaction by its chain signature
func (r *TransactionRepository) GetBySignature(ctx context.Context, signature string) (*entities.LedgerTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE external_signature = $1`

	var txn entities.LedgerTransaction
	if err := r.db.GetContext(ctx, &txn, query, signature); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("transaction not found: %w", err)
		}
		return nil, fmt.Errorf("get transaction by signature: %w", err)
	}
	return &txn, nil
}

// MarkFailed flips a pending transaction to failed
func (r *TransactionRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE ledger_transactions
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query,
		entities.TransactionStatusFailed, time.Now(), id, entities.TransactionStatusPending)
	if err != nil {
		return fmt.Errorf("mark transaction failed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark transaction failed rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	return nil
}

// ListByAccount returns an account's history, newest first
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, filter entities.TransactionFilter) ([]*entities.LedgerTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE account_id = $1`
	args := []interface{}{accountID}

	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var txns []*entities.LedgerTransaction
	if err := r.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// ListPendingWithdrawals returns withdrawal intents that have a chain
// signature but never reached a terminal state, for reconciliation.
func (r *TransactionRepository) ListPendingWithdrawals(ctx context.Context, olderThan time.Duration) ([]*entities.LedgerTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE status = $1 AND kind = $2 AND external_signature IS NOT NULL
		  AND created_at < $3
		ORDER BY created_at
	`

	var txns []*entities.LedgerTransaction
	err := r.db.SelectContext(ctx, &txns, query,
		entities.TransactionStatusPending, entities.TransactionKindWithdrawal,
		time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("list pending withdrawals: %w", err)
	}
	return txns, nil
}
