// Package errors provides standardized error types for the domain layer.
// Pipeline rejections are sentinel errors so callers can report them as
// expected outcomes rather than failures.
package errors

import (
	"errors"
	"fmt"
)

// Pipeline rejection outcomes. These are frequent, expected results and are
// resolved inside the pipelines; callers map them to user-facing messages.
var (
	// ErrBelowMinimum indicates the requested amount is under the configured floor
	ErrBelowMinimum = errors.New("amount below configured minimum")

	// ErrInsufficientBalance indicates the recomputed profit does not cover the request
	ErrInsufficientBalance = errors.New("insufficient withdrawable balance")

	// ErrLockContention indicates another settlement is in flight for the account
	ErrLockContention = errors.New("another operation is already in progress")

	// ErrNothingToSweep indicates the custodial address holds nothing above fee + reserve
	ErrNothingToSweep = errors.New("nothing to sweep above fee and reserve")
)

// Fatal and ambiguous conditions surfaced out of the pipelines.
var (
	// ErrTreasuryUnderfunded is fatal for the attempt and pages an operator
	ErrTreasuryUnderfunded = errors.New("treasury balance below requested amount")

	// ErrRPCExhausted indicates the gateway retry budget ran out on a transient error
	ErrRPCExhausted = errors.New("gateway retry attempts exhausted")

	// ErrConfirmationTimeout indicates a submitted transfer whose confirmation
	// never arrived. The transfer may or may not have landed; it must be
	// resolved by reconciliation, never by resubmitting.
	ErrConfirmationTimeout = errors.New("transfer confirmation timed out")

	// ErrAccountNotFound indicates no account exists for the identifier
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransferNotFound indicates the chain has no record of a signature
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrIntentAlreadySettled indicates a pending withdrawal intent was
	// completed by a concurrent pass; the caller must roll back, never
	// debit again.
	ErrIntentAlreadySettled = errors.New("withdrawal intent already settled")
)

// DomainError carries a code and retryability alongside the wrapped cause
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Retryable bool
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(err error, code, message string) *DomainError {
	return &DomainError{Err: err, Code: code, Message: message}
}

// WithRetryable marks the error as retryable
func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	e.Retryable = retryable
	return e
}

// IsRejection reports whether err is one of the expected pipeline rejections
func IsRejection(err error) bool {
	return errors.Is(err, ErrBelowMinimum) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrLockContention) ||
		errors.Is(err, ErrNothingToSweep)
}

// retryable is implemented by adapter errors that classify themselves
type retryable interface {
	IsRetryable() bool
}

// ShouldRetry classifies err for the retry decorator. Rejections and fatal
// settlement conditions are never retried; adapter errors decide for
// themselves; anything unclassified is treated as transient.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if IsRejection(err) ||
		errors.Is(err, ErrTreasuryUnderfunded) ||
		errors.Is(err, ErrConfirmationTimeout) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrIntentAlreadySettled) {
		return false
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Retryable
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}

// RejectionCode maps a rejection to its stable code for API responses
func RejectionCode(err error) string {
	switch {
	case errors.Is(err, ErrBelowMinimum):
		return "BELOW_MINIMUM"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrLockContention):
		return "LOCK_CONTENTION"
	case errors.Is(err, ErrNothingToSweep):
		return "NOTHING_TO_SWEEP"
	case errors.Is(err, ErrTreasuryUnderfunded):
		return "TREASURY_UNDERFUNDED"
	case errors.Is(err, ErrConfirmationTimeout):
		return "CONFIRMATION_TIMEOUT"
	case errors.Is(err, ErrRPCExhausted):
		return "RPC_EXHAUSTED"
	default:
		return "INTERNAL"
	}
}

// Wrap adds context to an error the way services report upward
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
