package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind represents the kind of ledger transaction
type TransactionKind string

const (
	TransactionKindDeposit       TransactionKind = "deposit"
	TransactionKindWithdrawal    TransactionKind = "withdrawal"
	TransactionKindReinvest      TransactionKind = "reinvest"
	TransactionKindReferralBonus TransactionKind = "referral_bonus"
)

// Validate checks if the transaction kind is valid
func (k TransactionKind) Validate() error {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdrawal,
		TransactionKindReinvest, TransactionKindReferralBonus:
		return nil
	default:
		return fmt.Errorf("invalid transaction kind: %s", k)
	}
}

// TransactionStatus represents the status of a ledger transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether the status may no longer change
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// Validate checks if the transaction status is valid
func (s TransactionStatus) Validate() error {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid transaction status: %s", s)
	}
}

// LedgerTransaction is one attempt of a balance-bearing operation. Rows are
// append-only: once the status is terminal the row is never mutated again,
// so the table doubles as the audit trail from which LedgerBalance can be
// reconstructed independently of the cached field on Account.
type LedgerTransaction struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	AccountID uuid.UUID       `json:"account_id" db:"account_id"`
	Kind      TransactionKind `json:"kind" db:"kind"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`

	// ExternalSignature is nil for purely internal reinvest entries.
	// For withdrawals it is set as soon as the transfer is submitted, which
	// is what makes crash reconciliation possible.
	ExternalSignature *string `json:"external_signature,omitempty" db:"external_signature"`

	BalanceAfter decimal.Decimal   `json:"balance_after" db:"balance_after"`
	Status       TransactionStatus `json:"status" db:"status"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Validate checks structural invariants before persistence
func (t *LedgerTransaction) Validate() error {
	if t.AccountID == uuid.Nil {
		return fmt.Errorf("account id is required")
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := t.Status.Validate(); err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if t.BalanceAfter.IsNegative() {
		return fmt.Errorf("balance after must not be negative")
	}
	return nil
}

// MarkCompleted transitions the row to its terminal completed state
func (t *LedgerTransaction) MarkCompleted() {
	now := time.Now()
	t.Status = TransactionStatusCompleted
	t.CompletedAt = &now
}

// TransactionFilter narrows history queries
type TransactionFilter struct {
	Kind   *TransactionKind
	Status *TransactionStatus
	Limit  int
	Offset int
}

// SettlementOutcome is the terminal state a settlement attempt reached
type SettlementOutcome string

const (
	SettlementOutcomeCommitted           SettlementOutcome = "committed"
	SettlementOutcomeRejected            SettlementOutcome = "rejected"
	SettlementOutcomeTransferFailed      SettlementOutcome = "transfer_failed"
	SettlementOutcomeAwaitingReconcile   SettlementOutcome = "awaiting_reconciliation"
)

// SettlementResult describes how a settlement attempt ended
type SettlementResult struct {
	Outcome     SettlementOutcome  `json:"outcome"`
	Transaction *LedgerTransaction `json:"transaction,omitempty"`
	NewBalance  decimal.Decimal    `json:"new_balance"`
}

// SweepResult describes a completed deposit ingestion
type SweepResult struct {
	Swept       decimal.Decimal    `json:"swept"`
	Fee         decimal.Decimal    `json:"fee"`
	Reserve     decimal.Decimal    `json:"reserve"`
	Transaction *LedgerTransaction `json:"transaction"`
}
