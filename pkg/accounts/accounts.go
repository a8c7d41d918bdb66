// Package accounts is the account store: registered users, their
// credentials and their balances, persisted as one document.
package accounts

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ledger-core/pkg/clock"
	"ledger-core/pkg/ledger"
	"ledger-core/pkg/logging"
	"ledger-core/pkg/metrics"
	"ledger-core/pkg/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Config holds onboarding defaults.
type Config struct {
	// OpeningBalance is credited to every new account.
	OpeningBalance decimal.Decimal `yaml:"opening_balance"`
	// DailyLimit is the debit limit assigned at registration.
	DailyLimit decimal.Decimal `yaml:"daily_limit"`
	Tier       string          `yaml:"tier"`
	// BcryptCost is passed to bcrypt; zero means bcrypt.DefaultCost.
	BcryptCost int `yaml:"bcrypt_cost"`
}

// DefaultConfig returns the bank's onboarding terms.
func DefaultConfig() Config {
	return Config{
		OpeningBalance: decimal.RequireFromString("1000.00"),
		DailyLimit:     decimal.NewFromInt(5000),
		Tier:           "Tier 1",
		BcryptCost:     bcrypt.DefaultCost,
	}
}

// Store owns the users document. Every read-modify-write runs under one
// mutex, so ApplyDelta is atomic with respect to other Store calls.
type Store struct {
	mu sync.Mutex

	layer  store.Layer
	key    string
	config Config

	clock   clock.Clock
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// Options carries the optional collaborators of a Store.
type Options struct {
	Clock   clock.Clock
	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
}

// New creates a Store persisting to layer under keys.Build("users").
func New(layer store.Layer, keys *store.KeyPattern, config Config, opts Options) *Store {
	if config.OpeningBalance.IsZero() && config.DailyLimit.IsZero() {
		defaults := DefaultConfig()
		config.OpeningBalance = defaults.OpeningBalance
		config.DailyLimit = defaults.DailyLimit
	}
	if config.Tier == "" {
		config.Tier = DefaultConfig().Tier
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Store{
		layer:   layer,
		key:     keys.MustBuild("users"),
		config:  config,
		clock:   clock.OrReal(opts.Clock),
		metrics: metrics.OrNoOp(opts.Metrics),
		logger:  logging.OrGlobal(opts.Logger, "accounts"),
	}
}

func (s *Store) load(ctx context.Context) ([]ledger.Account, error) {
	var users []ledger.Account
	if _, err := store.GetJSON(ctx, s.layer, s.key, &users); err != nil {
		return nil, fmt.Errorf("accounts: load users: %w", err)
	}
	return users, nil
}

func (s *Store) save(ctx context.Context, users []ledger.Account) error {
	if err := store.SetJSON(ctx, s.layer, s.key, users); err != nil {
		return fmt.Errorf("accounts: save users: %w", err)
	}
	return nil
}

func indexOf(users []ledger.Account, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns the account with id, or ledger.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	i := indexOf(users, id)
	if i < 0 {
		return ledger.Account{}, fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}
	return users[i], nil
}

// FindByEmail looks an account up by email, ignoring case.
func (s *Store) FindByEmail(ctx context.Context, email string) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return ledger.Account{}, fmt.Errorf("account %s: %w", email, ledger.ErrNotFound)
}

// List returns every account in registration order.
func (s *Store) List(ctx context.Context) ([]ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Create registers a new account with the opening balance.
func (s *Store) Create(ctx context.Context, reg Registration) (ledger.Account, error) {
	reg.normalize()
	if err := reg.Validate(); err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeRejected)
		return ledger.Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.config.BcryptCost)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeFailed)
		return ledger.Account{}, fmt.Errorf("accounts: hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeFailed)
		return ledger.Account{}, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, reg.Email) {
			s.metrics.RecordRegistration(metrics.OutcomeRejected)
			return ledger.Account{}, ledger.ErrDuplicateEmail
		}
	}

	account, err := s.newAccount(reg, string(hash))
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeFailed)
		return ledger.Account{}, err
	}

	if err := s.save(ctx, append(users, account)); err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeFailed)
		return ledger.Account{}, err
	}

	s.metrics.RecordRegistration(metrics.OutcomeSuccess)
	s.logger.Info("Account registered",
		logging.AccountID(account.ID),
		zap.String("account_type", account.AccountType))

	return account, nil
}

func (s *Store) newAccount(reg Registration, passwordHash string) (ledger.Account, error) {
	number, err := newAccountNumber()
	if err != nil {
		return ledger.Account{}, err
	}
	card, err := newCardNumber()
	if err != nil {
		return ledger.Account{}, err
	}
	cvv, err := newCVV()
	if err != nil {
		return ledger.Account{}, err
	}

	now := s.clock.Now().UTC()
	return ledger.Account{
		ID:            uuid.NewString(),
		FullName:      reg.FullName,
		Email:         reg.Email,
		Phone:         reg.Phone,
		Nationality:   reg.Nationality,
		DateOfBirth:   reg.DateOfBirth,
		Address:       reg.Address,
		AccountType:   reg.AccountType,
		AccountNumber: number,
		RoutingNumber: RoutingNumber,
		PasswordHash:  passwordHash,
		PIN:           reg.PIN,
		Balance:       s.config.OpeningBalance,
		Tier:          s.config.Tier,
		DailyLimit:    s.config.DailyLimit,
		Card: ledger.Card{
			Number:     card,
			HolderName: strings.ToUpper(reg.FullName),
			Expiry:     cardExpiry(now),
			CVV:        cvv,
			Active:     true,
		},
		CreatedAt: now,
	}, nil
}

// Authenticate checks email and password. Any mismatch, including an
// unknown email, is ledger.ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (ledger.Account, error) {
	account, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.Account{}, ledger.ErrInvalidCredentials
		}
		return ledger.Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return ledger.Account{}, ledger.ErrInvalidCredentials
	}
	return account, nil
}

// VerifyPIN is an exact comparison with no attempt tracking; callers wanting
// lockout go through a pin.Policy.
func (s *Store) VerifyPIN(ctx context.Context, id, pin string) (bool, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return account.PIN != "" && subtle.ConstantTimeCompare([]byte(account.PIN), []byte(pin)) == 1, nil
}

// ApplyDelta adds delta to the balance of id and returns the updated
// account. A result below zero fails with ledger.ErrInsufficientFunds and
// leaves the balance untouched.
func (s *Store) ApplyDelta(ctx context.Context, id string, delta decimal.Decimal) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	i := indexOf(users, id)
	if i < 0 {
		return ledger.Account{}, fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}

	next := users[i].Balance.Add(delta)
	if next.IsNegative() {
		return ledger.Account{}, ledger.ErrInsufficientFunds
	}
	users[i].Balance = next

	if err := s.save(ctx, users); err != nil {
		return ledger.Account{}, err
	}

	s.logger.Debug("Balance updated",
		logging.AccountID(id),
		logging.Amount("delta", delta),
		logging.Amount("balance", next))

	return users[i], nil
}

// BlockCard permanently blocks the account's card. Blocking an already
// blocked card fails with ledger.ErrCardBlocked.
func (s *Store) BlockCard(ctx context.Context, id string) (ledger.Account, error) {
	account, err := s.updateCard(ctx, id, func(card *ledger.Card) {
		card.Blocked = true
		card.Active = false
	})
	if err != nil {
		return ledger.Account{}, err
	}
	s.logger.Info("Card blocked", logging.AccountID(id))
	return account, nil
}

// FreezeCard deactivates the card until UnfreezeCard. Freezing a frozen
// card is a no-op; a blocked card fails with ledger.ErrCardBlocked.
func (s *Store) FreezeCard(ctx context.Context, id string) (ledger.Account, error) {
	return s.setCardActive(ctx, id, false)
}

// UnfreezeCard reactivates a frozen card. A blocked card stays blocked.
func (s *Store) UnfreezeCard(ctx context.Context, id string) (ledger.Account, error) {
	return s.setCardActive(ctx, id, true)
}

func (s *Store) setCardActive(ctx context.Context, id string, active bool) (ledger.Account, error) {
	account, err := s.updateCard(ctx, id, func(card *ledger.Card) {
		card.Active = active
	})
	if err != nil {
		return ledger.Account{}, err
	}
	s.logger.Info("Card state changed", logging.AccountID(id), zap.Bool("active", active))
	return account, nil
}

// updateCard applies change to the card of id unless it is blocked.
func (s *Store) updateCard(ctx context.Context, id string, change func(card *ledger.Card)) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	i := indexOf(users, id)
	if i < 0 {
		return ledger.Account{}, fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}
	if users[i].Card.Blocked {
		return ledger.Account{}, ledger.ErrCardBlocked
	}
	change(&users[i].Card)

	if err := s.save(ctx, users); err != nil {
		return ledger.Account{}, err
	}
	return users[i], nil
}

// Demo account credentials.
const (
	DemoID       = "demo-user-001"
	DemoEmail    = "Henrycalors348@gmail.com"
	DemoPassword = "Bigben081"
	DemoPIN      = "1234"
)

// SeedDemo adds the demo account unless it already exists. It returns the
// stored demo account either way.
func (s *Store) SeedDemo(ctx context.Context) (ledger.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), s.config.BcryptCost)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("accounts: hash demo password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	if i := indexOf(users, DemoID); i >= 0 {
		return users[i], nil
	}

	demo := ledger.Account{
		ID:            DemoID,
		FullName:      "Martin Lampard",
		Email:         DemoEmail,
		Phone:         "+1 (555) 123-4567",
		Nationality:   "USA",
		DateOfBirth:   "1962-03-28",
		Address:       "123 Main Street, New York, NY 10001",
		AccountType:   "Savings",
		AccountNumber: "73449001266344",
		RoutingNumber: RoutingNumber,
		PasswordHash:  string(hash),
		PIN:           DemoPIN,
		Balance:       decimal.RequireFromString("12450.75"),
		Tier:          "Tier 3",
		DailyLimit:    decimal.NewFromInt(500000),
		Card: ledger.Card{
			Number:     "4532 8943 2312 4567",
			HolderName: "MARTIN LAMPARD",
			Expiry:     "08/28",
			CVV:        "123",
			Active:     true,
		},
		CreatedAt: s.clock.Now().UTC().Truncate(time.Second),
	}

	if err := s.save(ctx, append(users, demo)); err != nil {
		return ledger.Account{}, err
	}
	s.logger.Info("Demo account seeded", logging.AccountID(DemoID))
	return demo, nil
}
