package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account represents a user-linked custodial wallet. The external identifier
// is assigned by the front-end collaborator and never changes.
//
// LedgerBalance is a persisted snapshot of the computed balance; the source
// of truth is always Principal plus elapsed time from the growth anchor.
type Account struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ExternalID string    `json:"external_id" db:"external_id"`

	// Custodial keypair. The secret is AES-GCM encrypted at rest and is
	// never serialized.
	DepositAddress  string `json:"deposit_address" db:"deposit_address"`
	EncryptedSecret string `json:"-" db:"encrypted_secret"`

	Principal        decimal.Decimal `json:"principal" db:"principal"`
	PrincipalSince   *time.Time      `json:"principal_since" db:"principal_since"`
	LastWithdrawalAt *time.Time      `json:"last_withdrawal_at" db:"last_withdrawal_at"`
	LedgerBalance    decimal.Decimal `json:"ledger_balance" db:"ledger_balance"`

	ReferredBy *uuid.UUID `json:"referred_by,omitempty" db:"referred_by"`

	AutoWithdrawal bool `json:"auto_withdrawal" db:"auto_withdrawal"`
	AutoReinvest   bool `json:"auto_reinvest" db:"auto_reinvest"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// GrowthAnchor returns the timestamp the compounding curve is anchored to.
// Every settled withdrawal resets the clock, so the last withdrawal wins
// over the deposit anchor. Returns nil when the account has never deposited.
func (a *Account) GrowthAnchor() *time.Time {
	if a.LastWithdrawalAt != nil {
		return a.LastWithdrawalAt
	}
	return a.PrincipalSince
}

// HasDeposited reports whether the account ever completed a deposit
func (a *Account) HasDeposited() bool {
	return a.PrincipalSince != nil && a.Principal.IsPositive()
}

// Validate checks structural invariants before persistence
func (a *Account) Validate() error {
	if a.ExternalID == "" {
		return fmt.Errorf("external id is required")
	}
	if a.DepositAddress == "" {
		return fmt.Errorf("deposit address is required")
	}
	if a.Principal.IsNegative() {
		return fmt.Errorf("principal must not be negative")
	}
	if a.LedgerBalance.IsNegative() {
		return fmt.Errorf("ledger balance must not be negative")
	}
	return nil
}

// CreateAccountRequest is the payload for provisioning a new account
type CreateAccountRequest struct {
	ExternalID string     `json:"external_id" binding:"required"`
	ReferredBy *uuid.UUID `json:"referred_by,omitempty"`
}

// UpdateAccountPolicyRequest toggles the background-settlement policy flags
type UpdateAccountPolicyRequest struct {
	AutoWithdrawal *bool `json:"auto_withdrawal,omitempty"`
	AutoReinvest   *bool `json:"auto_reinvest,omitempty"`
}

// AccountBalanceView is the computed balance snapshot returned to callers
type AccountBalanceView struct {
	AccountID     uuid.UUID       `json:"account_id"`
	Principal     decimal.Decimal `json:"principal"`
	Balance       decimal.Decimal `json:"balance"`
	Profit        decimal.Decimal `json:"profit"`
	AnchorTime    *time.Time      `json:"anchor_time"`
	ComputedAt    time.Time       `json:"computed_at"`
	DepositAddr   string          `json:"deposit_address"`
	AutoWithdraw  bool            `json:"auto_withdrawal"`
	AutoReinvest  bool            `json:"auto_reinvest"`
}
