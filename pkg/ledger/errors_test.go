package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestLockedError(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		remaining time.Duration
		want      int
	}{
		{30 * time.Second, 30},
		{29*time.Second + 100*time.Millisecond, 30},
		{10 * time.Millisecond, 1},
		{0, 1},
	}
	for _, tt := range tests {
		err := NewLockedError(now.Add(tt.remaining), now)
		if err.SecondsRemaining != tt.want {
			t.Errorf("remaining %v: expected %d seconds, got %d", tt.remaining, tt.want, err.SecondsRemaining)
		}
	}

	var err error = fmt.Errorf("verify: %w", NewLockedError(now.Add(time.Second), now))
	if !errors.Is(err, ErrAccountLocked) {
		t.Error("Expected wrapped LockedError to match ErrAccountLocked")
	}
	var le *LockedError
	if !errors.As(err, &le) {
		t.Error("Expected errors.As to find *LockedError")
	}
}

func TestPinMismatchError(t *testing.T) {
	err := &PinMismatchError{AttemptsRemaining: 3}
	if !errors.Is(err, ErrPinMismatch) {
		t.Error("Expected PinMismatchError to match ErrPinMismatch")
	}
	if err.Error() != "incorrect PIN, 3 attempts remaining" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{Invalid("amount", "too small"), "validation"},
		{fmt.Errorf("commit: %w", ErrInsufficientFunds), "insufficient_funds"},
		{&PinMismatchError{AttemptsRemaining: 1}, "pin_mismatch"},
		{&LockedError{SecondsRemaining: 3}, "locked"},
		{&DailyLimitError{Limit: "5000.00", Remaining: "0.00"}, "daily_limit"},
		{ErrCommitAbandoned, "abandoned"},
		{errors.New("disk on fire"), "internal"},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v): expected %s, got %s", tt.err, tt.want, got)
		}
	}
}
