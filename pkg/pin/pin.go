// Package pin implements PIN verification with attempt counting and a
// temporary lockout after repeated failures.
package pin

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"ledger-core/pkg/clock"
	"ledger-core/pkg/ledger"
	"ledger-core/pkg/logging"
	"ledger-core/pkg/metrics"

	"go.uber.org/zap"
)

// Purpose labels what a PIN check is guarding, for logs and metrics.
type Purpose string

const (
	PurposeLogin       Purpose = "login"
	PurposeTransaction Purpose = "transaction"
)

// Config holds the lockout thresholds.
type Config struct {
	// MaxAttempts is the number of consecutive failures that trigger a lockout.
	MaxAttempts int `yaml:"max_attempts"`
	// Lockout is how long verification stays suspended.
	Lockout time.Duration `yaml:"lockout"`
}

// DefaultConfig returns 5 attempts and a 30 second lockout.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		Lockout:     30 * time.Second,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("pin: max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.Lockout <= 0 {
		return fmt.Errorf("pin: lockout must be positive, got %v", c.Lockout)
	}
	return nil
}

// State is a snapshot of the attempt counter.
type State struct {
	Attempts    int
	LockedUntil time.Time // zero when unlocked
}

// Locked reports whether the state is locked at now.
func (s State) Locked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// Policy tracks failed attempts for one session. Safe for concurrent use.
type Policy struct {
	mu     sync.Mutex
	state  State
	config Config

	clock   clock.Clock
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// New creates a Policy. Zero config fields fall back to the defaults; a nil
// clock, collector or logger falls back to the real clock, a no-op collector
// and the global logger.
func New(config Config, clk clock.Clock, collector metrics.MetricsCollector, logger *logging.Logger) *Policy {
	defaults := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.Lockout <= 0 {
		config.Lockout = defaults.Lockout
	}
	return &Policy{
		config:  config,
		clock:   clock.OrReal(clk),
		metrics: metrics.OrNoOp(collector),
		logger:  logging.OrGlobal(logger, "pin"),
	}
}

// Verify compares entered against expected.
//
// While locked it returns *ledger.LockedError without looking at the PIN or
// counting the attempt. The first call after the lockout expires starts
// from zero attempts. A mismatch returns *ledger.PinMismatchError, except
// the one that reaches MaxAttempts, which starts the lockout and returns
// *ledger.LockedError. A match resets the counter.
func (p *Policy) Verify(purpose Purpose, expected, entered string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()

	if !p.state.LockedUntil.IsZero() {
		if now.Before(p.state.LockedUntil) {
			p.metrics.RecordPinAttempt(string(purpose), "locked")
			return ledger.NewLockedError(p.state.LockedUntil, now)
		}
		p.state = State{}
		p.logger.Debug("PIN lockout expired", zap.String("purpose", string(purpose)))
	}

	if matches(expected, entered) {
		p.state.Attempts = 0
		p.metrics.RecordPinAttempt(string(purpose), metrics.OutcomeSuccess)
		return nil
	}

	p.state.Attempts++
	p.metrics.RecordPinAttempt(string(purpose), metrics.OutcomeRejected)

	if p.state.Attempts >= p.config.MaxAttempts {
		p.state.LockedUntil = now.Add(p.config.Lockout)
		p.metrics.RecordLockout(string(purpose))
		p.logger.Warn("PIN verification locked",
			zap.String("purpose", string(purpose)),
			zap.Int("attempts", p.state.Attempts),
			zap.Time("locked_until", p.state.LockedUntil))
		return ledger.NewLockedError(p.state.LockedUntil, now)
	}

	return &ledger.PinMismatchError{AttemptsRemaining: p.config.MaxAttempts - p.state.Attempts}
}

func matches(expected, entered string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(entered)) == 1
}

// State returns the current attempt state.
func (p *Policy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reset clears attempts and any lockout.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = State{}
}
