package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/harvest-service/harvest_service/internal/domain/entities"
	apperrors "github.com/harvest-service/harvest_service/internal/domain/errors"
)

const accountColumns = `
	id, external_id, deposit_address, encrypted_secret, principal,
	principal_since, last_withdrawal_at, ledger_balance, referred_by,
	auto_withdrawal, auto_reinvest, created_at, updated_at`

// AccountRepository handles account persistence
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account *entities.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validate account: %w", err)
	}

	query := `
		INSERT INTO accounts (id, external_id, deposit_address, encrypted_secret,
			principal, ledger_balance, referred_by, auto_withdrawal, auto_reinvest,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	err := r.db.QueryRowxContext(
		ctx,
		query,
		account.ID,
		account.ExternalID,
		account.DepositAddress,
		account.EncryptedSecret,
		account.Principal,
		account.LedgerBalance,
		account.ReferredBy,
		account.AutoWithdrawal,
		account.AutoReinvest,
		now,
		now,
	).Scan(&account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("account already exists: %w", err)
			}
		}
		return fmt.Errorf("create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, accountID uuid.UUID) (*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	var account entities.Account
	err := r.db.GetContext(ctx, &account, query, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &account, nil
}

// GetByExternalID retrieves an account by the front-end collaborator's ID
func (r *AccountRepository) GetByExternalID(ctx context.Context, externalID string) (*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE external_id = $1`

	var account entities.Account
	err := r.db.GetContext(ctx, &account, query, externalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account by external id: %w", err)
	}

	return &account, nil
}

// UpdatePolicy updates an account's automation flags
func (r *AccountRepository) UpdatePolicy(ctx context.Context, accountID uuid.UUID, autoWithdrawal, autoReinvest bool) error {
	query := `
		UPDATE accounts
		SET auto_withdrawal = $1, auto_reinvest = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, autoWithdrawal, autoReinvest, time.Now(), accountID)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update policy rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrAccountNotFound
	}

	return nil
}

// UpdateBalanceSnapshot refreshes the cached ledger_balance. The snapshot
// is display-only; balance truth stays in principal plus elapsed time.
func (r *AccountRepository) UpdateBalanceSnapshot(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE accounts SET ledger_balance = $1, updated_at = $2 WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, balance, time.Now(), accountID)
	if err != nil {
		return fmt.Errorf("update balance snapshot: %w", err)
	}
	return nil
}

// ListFunded returns accounts that have a non-zero principal
func (r *AccountRepository) ListFunded(ctx context.Context) ([]*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE principal > 0 ORDER BY created_at`

	var accounts []*entities.Account
	if err := r.db.SelectContext(ctx, &accounts, query); err != nil {
		return nil, fmt.Errorf("list funded accounts: %w", err)
	}
	return accounts, nil
}

// ListAutoWithdrawal returns funded accounts with the auto-withdrawal flag set
func (r *AccountRepository) ListAutoWithdrawal(ctx context.Context) ([]*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE auto_withdrawal = true AND principal > 0 ORDER BY created_at`

	var accounts []*entities.Account
	if err := r.db.SelectContext(ctx, &accounts, query); err != nil {
		return nil, fmt.Errorf("list auto-withdrawal accounts: %w", err)
	}
	return accounts, nil
}

// ListAutoReinvest returns funded accounts with the auto-reinvest flag set
func (r *AccountRepository) ListAutoReinvest(ctx context.Context) ([]*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE auto_reinvest = true AND principal > 0 ORDER BY created_at`

	var accounts []*entities.Account
	if err := r.db.SelectContext(ctx, &accounts, query); err != nil {
		return nil, fmt.Errorf("list auto-reinvest accounts: %w", err)
	}
	return accounts, nil
}

// ListIdle returns accounts that never deposited, for reminder broadcasts
func (r *AccountRepository) ListIdle(ctx context.Context) ([]*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE principal = 0 AND principal_since IS NULL ORDER BY created_at`

	var accounts []*entities.Account
	if err := r.db.SelectContext(ctx, &accounts, query); err != nil {
		return nil, fmt.Errorf("list idle accounts: %w", err)
	}
	return accounts, nil
}

// BeginAccountTx opens a database transaction and locks the account row.
// The returned transaction holds the row lock until Commit or Rollback,
// which is what keeps a settlement's balance read and its final debit
// atomic across the external transfer in between.
//
// The lock strength must stay FOR NO KEY UPDATE: the pending intent row
// is inserted on a separate connection while this lock is held, and its
// foreign key takes FOR KEY SHARE on the account row. Plain FOR UPDATE
// conflicts with that and the insert would wait on our own open
// transaction forever. No settlement ever rewrites the account id, so
// the weaker lock loses nothing.
func (r *AccountRepository) BeginAccountTx(ctx context.Context, accountID uuid.UUID) (*AccountTx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR NO KEY UPDATE`

	var account entities.Account
	if err := tx.GetContext(ctx, &account, query, accountID); err != nil {
		tx.Rollback()
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("lock account row: %w", err)
	}

	return &AccountTx{tx: tx, account: &account}, nil
}
