// Package session tracks the signed-in user. A Session owns the PIN policy
// shared by login and transaction checks, the login PIN gate, and the
// single pending transaction slot.
package session

import (
	"sync"
	"time"

	"ledger-core/pkg/ledger"
	"ledger-core/pkg/pin"
)

// Pending is whatever the transaction engine parks on a session while it
// waits for PIN confirmation.
type Pending interface {
	// Abandon cancels the pending work. It must be safe to call more than once.
	Abandon()
}

// Session is one signed-in user.
type Session struct {
	id     string
	userID string
	policy *pin.Policy

	mu          sync.Mutex
	timestamp   time.Time
	pinVerified bool
	pending     Pending
}

// record is the persisted form.
type record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Session) ID() string { return s.id }

func (s *Session) UserID() string { return s.userID }

// Policy is the PIN policy for this session.
func (s *Session) Policy() *pin.Policy { return s.policy }

func (s *Session) Timestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timestamp
}

// PinVerified reports whether the login PIN has been entered.
func (s *Session) PinVerified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinVerified
}

// RequireUnlocked returns ledger.ErrPinRequired until the login PIN has
// been verified.
func (s *Session) RequireUnlocked() error {
	if !s.PinVerified() {
		return ledger.ErrPinRequired
	}
	return nil
}

// SwapPending installs p as the pending work and returns what it replaced.
// The caller is responsible for abandoning the previous value.
func (s *Session) SwapPending(p Pending) Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.pending
	s.pending = p
	return prev
}

// Pending returns the pending work, or nil.
func (s *Session) Pending() Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// ClearPending empties the slot if it still holds p.
func (s *Session) ClearPending(p Pending) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != p {
		return false
	}
	s.pending = nil
	return true
}

func (s *Session) touch(now time.Time) record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timestamp = now
	return record{ID: s.id, UserID: s.userID, Timestamp: now}
}

func (s *Session) close() {
	if p := s.SwapPending(nil); p != nil {
		p.Abandon()
	}
}
