package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ledger-core/pkg/accounts"
	"ledger-core/pkg/clock"
	"ledger-core/pkg/ledger"
	"ledger-core/pkg/logging"
	"ledger-core/pkg/metrics"
	"ledger-core/pkg/pin"
	"ledger-core/pkg/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager holds at most one current session and persists it under
// keys.Build("session").
type Manager struct {
	mu      sync.Mutex
	current *Session

	accounts *accounts.Store
	layer    store.Layer
	key      string
	pin      pin.Config

	clock   clock.Clock
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// Options carries the optional collaborators of a Manager.
type Options struct {
	PIN     pin.Config
	Clock   clock.Clock
	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
}

// NewManager creates a Manager.
func NewManager(accts *accounts.Store, layer store.Layer, keys *store.KeyPattern, opts Options) *Manager {
	return &Manager{
		accounts: accts,
		layer:    layer,
		key:      keys.MustBuild("session"),
		pin:      opts.PIN,
		clock:    clock.OrReal(opts.Clock),
		metrics:  metrics.OrNoOp(opts.Metrics),
		logger:   logging.OrGlobal(opts.Logger, "session"),
	}
}

func (m *Manager) newSession(id, userID string) *Session {
	return &Session{
		id:     id,
		userID: userID,
		policy: pin.New(m.pin, m.clock, m.metrics, m.logger.Named("pin")),
	}
}

func (m *Manager) persist(ctx context.Context, s *Session) error {
	if err := store.SetJSON(ctx, m.layer, m.key, s.touch(m.clock.Now().UTC())); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

// Login authenticates email and password and replaces any current session.
// The new session still needs its login PIN verified.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	account, err := m.accounts.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidCredentials) {
			m.metrics.RecordLogin(metrics.OutcomeRejected)
		} else {
			m.metrics.RecordLogin(metrics.OutcomeFailed)
		}
		return nil, err
	}

	s := m.newSession(uuid.NewString(), account.ID)
	if err := m.persist(ctx, s); err != nil {
		m.metrics.RecordLogin(metrics.OutcomeFailed)
		return nil, err
	}

	m.mu.Lock()
	prev := m.current
	m.current = s
	m.mu.Unlock()

	if prev != nil {
		prev.close()
	}

	m.metrics.RecordLogin(metrics.OutcomeSuccess)
	m.logger.Info("Session started",
		logging.AccountID(account.ID),
		zap.String("session_id", s.id))

	return s, nil
}

// Resume returns the current session, restoring the persisted one after a
// restart. A restored session must verify its login PIN again.
func (m *Manager) Resume(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current, nil
	}

	var rec record
	found, err := store.GetJSON(ctx, m.layer, m.key, &rec)
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	if !found || rec.UserID == "" {
		return nil, ledger.ErrNoSession
	}

	if _, err := m.accounts.Get(ctx, rec.UserID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			m.logger.Warn("Dropping session for unknown account", logging.AccountID(rec.UserID))
			if err := m.layer.Delete(ctx, m.key); err != nil {
				m.logger.Warn("Failed to delete stale session", logging.Key(m.key), zap.Error(err))
			}
			return nil, ledger.ErrNoSession
		}
		return nil, err
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := m.newSession(id, rec.UserID)
	s.timestamp = rec.Timestamp
	m.current = s

	m.logger.Info("Session resumed", logging.AccountID(rec.UserID), zap.String("session_id", id))
	return s, nil
}

// Current returns the in-memory session or ledger.ErrNoSession.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ledger.ErrNoSession
	}
	return m.current, nil
}

// VerifyPIN checks the login PIN through the session's policy and unlocks
// the session on success.
func (m *Manager) VerifyPIN(ctx context.Context, s *Session, entered string) error {
	account, err := m.accounts.Get(ctx, s.userID)
	if err != nil {
		return err
	}
	if err := s.policy.Verify(pin.PurposeLogin, account.PIN, entered); err != nil {
		m.logger.Info("Login PIN rejected",
			logging.AccountID(s.userID),
			zap.String("reason", ledger.ClassifyError(err)))
		return err
	}

	s.mu.Lock()
	s.pinVerified = true
	s.mu.Unlock()
	return m.persist(ctx, s)
}

// Touch refreshes the persisted timestamp.
func (m *Manager) Touch(ctx context.Context, s *Session) error {
	return m.persist(ctx, s)
}

// Logout ends the current session, abandoning any pending transaction.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s != nil {
		s.close()
		m.logger.Info("Session ended", logging.AccountID(s.userID), zap.String("session_id", s.id))
	}

	if err := m.layer.Delete(ctx, m.key); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
