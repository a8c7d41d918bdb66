package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors. Every failure leaves all stores unmodified.
var (
	ErrValidation = errors.New("ledger: validation failed")

	ErrDuplicateEmail = errors.New("ledger: email already registered")

	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	ErrPinMismatch = errors.New("ledger: incorrect PIN")

	ErrAccountLocked = errors.New("ledger: account temporarily locked")

	ErrNotFound = errors.New("ledger: not found")

	ErrInvalidCredentials = errors.New("ledger: invalid email or password")

	ErrNoSession = errors.New("ledger: no active session")

	// ErrPinRequired is returned for account operations attempted before
	// the login PIN has been verified.
	ErrPinRequired = errors.New("ledger: PIN verification required")

	ErrNoPendingTransaction = errors.New("ledger: no pending transaction")

	// ErrCommitAbandoned is returned when a pending commit is cancelled
	// during its processing delay.
	ErrCommitAbandoned = errors.New("ledger: commit abandoned")

	ErrDuplicateReference = errors.New("ledger: duplicate transaction reference")

	ErrDailyLimitExceeded = errors.New("ledger: daily limit exceeded")

	ErrCardBlocked = errors.New("ledger: card is blocked")
)

// ValidationError names the first offending field.
type ValidationError struct {
	Field  string
	Reason string
}

// Invalid builds a *ValidationError.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PinMismatchError reports a wrong PIN and how many tries remain before
// lockout.
type PinMismatchError struct {
	AttemptsRemaining int
}

func (e *PinMismatchError) Error() string {
	return fmt.Sprintf("incorrect PIN, %d attempts remaining", e.AttemptsRemaining)
}

func (e *PinMismatchError) Unwrap() error {
	return ErrPinMismatch
}

// LockedError reports an active lockout.
type LockedError struct {
	Until            time.Time
	SecondsRemaining int
}

// NewLockedError computes the remaining whole seconds, rounded up.
func NewLockedError(until, now time.Time) *LockedError {
	secs := int(math.Ceil(until.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return &LockedError{Until: until, SecondsRemaining: secs}
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account temporarily locked, try again in %d seconds", e.SecondsRemaining)
}

func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}

// DailyLimitError reports how much of today's limit is left.
type DailyLimitError struct {
	Limit     string
	Remaining string
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("daily limit of $%s exceeded, $%s remaining today", e.Limit, e.Remaining)
}

func (e *DailyLimitError) Unwrap() error {
	return ErrDailyLimitExceeded
}

// ClassifyError returns a metrics and logging label for err.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrPinMismatch):
		return "pin_mismatch"
	case errors.Is(err, ErrAccountLocked):
		return "locked"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, ErrPinRequired):
		return "pin_required"
	case errors.Is(err, ErrNoPendingTransaction):
		return "no_pending"
	case errors.Is(err, ErrCommitAbandoned):
		return "abandoned"
	case errors.Is(err, ErrDuplicateReference):
		return "duplicate_reference"
	case errors.Is(err, ErrDailyLimitExceeded):
		return "daily_limit"
	case errors.Is(err, ErrCardBlocked):
		return "card_blocked"
	default:
		return "internal"
	}
}
