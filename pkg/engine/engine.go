// Package engine runs the transaction workflow: a request is validated and
// priced, parked on the session, confirmed with the PIN, and only then
// applied to the balance and appended to the log.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-core/pkg/accounts"
	"ledger-core/pkg/clock"
	"ledger-core/pkg/ledger"
	"ledger-core/pkg/logging"
	"ledger-core/pkg/metrics"
	"ledger-core/pkg/pin"
	"ledger-core/pkg/session"
	"ledger-core/pkg/txlog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxReferenceAttempts bounds reference regeneration on collision.
const maxReferenceAttempts = 5

// Config holds engine settings.
type Config struct {
	// CommitDelay is the processing delay between PIN match and the balance
	// update. Zero commits immediately.
	CommitDelay time.Duration `yaml:"commit_delay"`

	// EnforceDailyLimit rejects debits that would take the account past its
	// daily limit for the current UTC day.
	EnforceDailyLimit bool `yaml:"enforce_daily_limit"`

	Fees ledger.FeeSchedule `yaml:"-"`
}

// DefaultConfig returns a 3 second commit delay with daily limits enforced.
func DefaultConfig() Config {
	return Config{
		CommitDelay:       3 * time.Second,
		EnforceDailyLimit: true,
		Fees:              ledger.DefaultFees(),
	}
}

// Options carries the optional collaborators of an Engine.
type Options struct {
	Clock   clock.Clock
	Metrics metrics.MetricsCollector
	Logger  *logging.Logger

	// References overrides reference generation.
	References ledger.ReferenceFunc
}

// Engine is safe for concurrent use; per-session state lives on the
// session.
type Engine struct {
	accounts *accounts.Store
	log      *txlog.Log
	sessions *session.Manager

	config     Config
	references ledger.ReferenceFunc

	clock   clock.Clock
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// New creates an Engine. A zero fee schedule falls back to the default one.
func New(accts *accounts.Store, log *txlog.Log, sessions *session.Manager, config Config, opts Options) *Engine {
	if config.Fees == (ledger.FeeSchedule{}) {
		config.Fees = ledger.DefaultFees()
	}
	refs := opts.References
	if refs == nil {
		refs = ledger.NewReference
	}
	return &Engine{
		accounts:   accts,
		log:        log,
		sessions:   sessions,
		config:     config,
		references: refs,
		clock:      clock.OrReal(opts.Clock),
		metrics:    metrics.OrNoOp(opts.Metrics),
		logger:     logging.OrGlobal(opts.Logger, "engine"),
	}
}

// Quote is the priced form of a request.
type Quote struct {
	Amount decimal.Decimal `json:"amount"`
	Fee    decimal.Decimal `json:"fee"`
	// Total is what leaves the account for a debit, or the gross amount for
	// a deposit.
	Total decimal.Decimal `json:"total"`
	// Net is the signed balance delta the commit will apply.
	Net          decimal.Decimal `json:"net"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
}

// Quote validates req against account and prices it. The first violation
// is returned as a *ledger.ValidationError, ledger.ErrInsufficientFunds or
// a *ledger.DailyLimitError. The returned request carries the filled-in
// details and description.
func (e *Engine) Quote(ctx context.Context, account ledger.Account, req ledger.Request) (ledger.Request, Quote, error) {
	if err := req.Validate(); err != nil {
		return req, Quote{}, err
	}

	if crypto, ok := req.Details.(ledger.CryptoDetails); ok {
		rate, _ := ledger.CryptoRate(crypto.Symbol)
		crypto.Rate = rate
		crypto.Quantity = ledger.CryptoQuantity(req.Amount, rate)
		req.Details = crypto
	}
	req.Description = req.DefaultDescription()

	fee, err := e.config.Fees.Fee(req.Details, req.Amount)
	if err != nil {
		return req, Quote{}, err
	}

	q := Quote{Amount: req.Amount, Fee: fee}
	if req.Kind.Direction() == ledger.Credit {
		q.Total = req.Amount
		q.Net = req.Amount.Sub(fee)
		q.BalanceAfter = account.Balance.Add(q.Net)
		return req, q, nil
	}

	q.Total = req.Amount.Add(fee)
	q.Net = q.Total.Neg()
	if q.Total.GreaterThan(account.Balance) {
		return req, Quote{}, ledger.ErrInsufficientFunds
	}
	q.BalanceAfter = account.Balance.Sub(q.Total)

	if e.config.EnforceDailyLimit && account.DailyLimit.IsPositive() {
		spent, err := e.log.DebitedSince(ctx, account.ID, startOfDay(e.clock.Now()))
		if err != nil {
			return req, Quote{}, err
		}
		if spent.Add(q.Total).GreaterThan(account.DailyLimit) {
			remaining := decimal.Max(account.DailyLimit.Sub(spent), decimal.Zero)
			return req, Quote{}, &ledger.DailyLimitError{
				Limit:     account.DailyLimit.StringFixed(2),
				Remaining: remaining.StringFixed(2),
			}
		}
	}

	return req, q, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Begin validates req and parks it on s awaiting PIN confirmation. Any
// request already pending on s is rejected first, whether or not req turns
// out to be valid.
func (e *Engine) Begin(ctx context.Context, s *session.Session, req ledger.Request) (*Pending, error) {
	if err := s.RequireUnlocked(); err != nil {
		return nil, err
	}

	if prev := s.SwapPending(nil); prev != nil {
		prev.Abandon()
		e.logger.Debug("Discarded previous pending transaction", logging.AccountID(s.UserID()))
	}

	account, err := e.accounts.Get(ctx, s.UserID())
	if err != nil {
		return nil, err
	}

	req, quote, err := e.Quote(ctx, account, req)
	if err != nil {
		e.metrics.RecordCommit(string(req.Kind), metrics.OutcomeRejected, 0)
		e.logger.Info("Transaction request rejected",
			logging.AccountID(account.ID),
			logging.Kind(string(req.Kind)),
			zap.String("reason", ledger.ClassifyError(err)))
		return nil, err
	}

	p := newPending(uuid.NewString(), req, quote, e.clock.Now().UTC())
	if prev := s.SwapPending(p); prev != nil {
		prev.Abandon()
	}

	e.logger.Debug("Transaction awaiting PIN",
		logging.AccountID(account.ID),
		logging.Kind(string(req.Kind)),
		logging.Amount("amount", quote.Amount),
		logging.Amount("fee", quote.Fee))

	return p, nil
}

// PendingFor returns the transaction pending on s.
func (e *Engine) PendingFor(s *session.Session) (*Pending, error) {
	p, ok := s.Pending().(*Pending)
	if !ok || p == nil {
		return nil, ledger.ErrNoPendingTransaction
	}
	return p, nil
}

// Abandon rejects the transaction pending on s. A commit already applying
// its balance update cannot be abandoned.
func (e *Engine) Abandon(s *session.Session) error {
	p, err := e.PendingFor(s)
	if err != nil {
		return err
	}
	if !p.tryAbandon() {
		return fmt.Errorf("engine: transaction %s is %s", p.ID, p.State())
	}
	s.ClearPending(p)
	e.metrics.RecordCommit(string(p.Request.Kind), metrics.OutcomeAbandoned, 0)
	e.logger.Info("Pending transaction abandoned", logging.AccountID(s.UserID()), logging.Kind(string(p.Request.Kind)))
	return nil
}

// Confirm checks entered against the account PIN through the session's
// policy, waits out the processing delay and commits.
//
// A wrong PIN or a lockout leaves the request pending so the caller can
// retry. Cancelling ctx or calling Abandon during the delay returns
// ledger.ErrCommitAbandoned. Funds are checked again after the delay.
// Either the balance update and the log record both land, or neither does;
// once the delay is over, cancelling ctx no longer interrupts the commit.
func (e *Engine) Confirm(ctx context.Context, s *session.Session, entered string) (ledger.Transaction, error) {
	if err := s.RequireUnlocked(); err != nil {
		return ledger.Transaction{}, err
	}
	p, err := e.PendingFor(s)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if !p.startConfirm() {
		return ledger.Transaction{}, fmt.Errorf("engine: transaction %s is %s: %w", p.ID, p.State(), ledger.ErrNoPendingTransaction)
	}

	account, err := e.accounts.Get(ctx, s.UserID())
	if err != nil {
		p.endConfirm()
		return ledger.Transaction{}, err
	}
	if err := s.Policy().Verify(pin.PurposeTransaction, account.PIN, entered); err != nil {
		p.endConfirm()
		return ledger.Transaction{}, err
	}

	start := e.clock.Now()
	kind := string(p.Request.Kind)

	if e.config.CommitDelay > 0 {
		select {
		case <-e.clock.After(e.config.CommitDelay):
		case <-ctx.Done():
			p.tryAbandon()
		case <-p.abandoned:
		}
	}
	if !p.beginCommit() {
		s.ClearPending(p)
		e.metrics.RecordCommit(kind, metrics.OutcomeAbandoned, e.clock.Now().Sub(start))
		return ledger.Transaction{}, ledger.ErrCommitAbandoned
	}

	// The commit runs to completion even if ctx is cancelled from here on.
	commitCtx := context.WithoutCancel(ctx)

	tx, err := e.commit(commitCtx, p, s.UserID())
	s.ClearPending(p)
	elapsed := e.clock.Now().Sub(start)

	if err != nil {
		p.finish(StateRejected)
		outcome := metrics.OutcomeFailed
		if errors.Is(err, ledger.ErrInsufficientFunds) || errors.Is(err, ledger.ErrDailyLimitExceeded) {
			outcome = metrics.OutcomeRejected
		}
		e.metrics.RecordCommit(kind, outcome, elapsed)
		e.logger.Warn("Transaction not committed",
			logging.AccountID(s.UserID()),
			logging.Kind(kind),
			zap.String("reason", ledger.ClassifyError(err)),
			zap.Error(err))
		return ledger.Transaction{}, err
	}

	p.finish(StateCommitted)
	e.metrics.RecordCommit(kind, metrics.OutcomeSuccess, elapsed)
	e.logger.Info("Transaction committed",
		logging.AccountID(tx.UserID),
		logging.Reference(tx.Reference),
		logging.Kind(kind),
		logging.Amount("net", tx.Net),
		zap.Duration("elapsed", elapsed))

	if e.sessions != nil {
		if err := e.sessions.Touch(commitCtx, s); err != nil {
			e.logger.Warn("Failed to refresh session", zap.Error(err))
		}
	}

	return tx, nil
}

func (e *Engine) commit(ctx context.Context, p *Pending, userID string) (ledger.Transaction, error) {
	account, err := e.accounts.Get(ctx, userID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	// Re-price against the current balance; it may have moved during the delay.
	req, quote, err := e.Quote(ctx, account, p.Request)
	if err != nil {
		return ledger.Transaction{}, err
	}

	if _, err := e.accounts.ApplyDelta(ctx, userID, quote.Net); err != nil {
		return ledger.Transaction{}, err
	}

	now := e.clock.Now().UTC()
	tx := ledger.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        req.Kind,
		Direction:   req.Kind.Direction(),
		Amount:      quote.Amount,
		Fee:         quote.Fee,
		Net:         quote.Net,
		Currency:    ledger.Currency,
		Status:      ledger.StatusSuccess,
		Description: req.Description,
		Details:     req.Details,
		CreatedAt:   now,
	}

	err = e.appendUnique(ctx, &tx, now)
	if err == nil {
		return tx, nil
	}

	if _, rerr := e.accounts.ApplyDelta(ctx, userID, quote.Net.Neg()); rerr != nil {
		e.logger.Error("Failed to reverse balance after log append failure",
			logging.AccountID(userID),
			logging.Amount("net", quote.Net),
			zap.NamedError("append_error", err),
			zap.Error(rerr))
		return ledger.Transaction{}, errors.Join(err, rerr)
	}
	return ledger.Transaction{}, err
}

// appendUnique appends tx under a fresh reference, regenerating on
// collision.
func (e *Engine) appendUnique(ctx context.Context, tx *ledger.Transaction, now time.Time) error {
	var err error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		tx.Reference, err = e.references(now)
		if err != nil {
			return err
		}
		err = e.log.Append(ctx, *tx)
		if !errors.Is(err, ledger.ErrDuplicateReference) {
			return err
		}
		e.logger.Debug("Reference collision, regenerating", logging.Reference(tx.Reference))
	}
	return err
}
