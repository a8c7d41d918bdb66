package engine

import (
	"sync"
	"time"

	"ledger-core/pkg/ledger"
)

// State is where a pending transaction is in the commit workflow.
type State string

const (
	StateAwaitingPin State = "awaiting_pin"
	StateCommitting  State = "committing"
	StateCommitted   State = "committed"
	StateRejected    State = "rejected"
)

// Pending is a validated request waiting for PIN confirmation. It is
// parked on the session and implements session.Pending.
type Pending struct {
	ID        string
	Request   ledger.Request
	Quote     Quote
	CreatedAt time.Time

	mu         sync.Mutex
	state      State
	confirming bool
	abandoned  chan struct{}
}

func newPending(id string, req ledger.Request, quote Quote, now time.Time) *Pending {
	return &Pending{
		ID:        id,
		Request:   req,
		Quote:     quote,
		CreatedAt: now,
		state:     StateAwaitingPin,
		abandoned: make(chan struct{}),
	}
}

// State returns the current workflow state.
func (p *Pending) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Abandon rejects the pending transaction and interrupts a commit that is
// still in its processing delay. Once the store mutation has started it
// has no effect.
func (p *Pending) Abandon() {
	p.tryAbandon()
}

func (p *Pending) tryAbandon() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateAwaitingPin:
		p.state = StateRejected
		close(p.abandoned)
		return true
	case StateRejected:
		return true
	default:
		return false
	}
}

// startConfirm claims the pending transaction for one Confirm call.
func (p *Pending) startConfirm() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateAwaitingPin || p.confirming {
		return false
	}
	p.confirming = true
	return true
}

// endConfirm releases the claim after a failed PIN check so the caller may
// retry.
func (p *Pending) endConfirm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirming = false
}

// beginCommit moves to StateCommitting unless Abandon got there first.
func (p *Pending) beginCommit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateAwaitingPin {
		return false
	}
	p.state = StateCommitting
	return true
}

func (p *Pending) finish(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.confirming = false
}

// View is the JSON shape of a pending transaction.
type View struct {
	ID          string         `json:"id"`
	State       State          `json:"state"`
	Kind        ledger.Kind    `json:"kind"`
	Description string         `json:"description"`
	Details     ledger.Details `json:"details"`
	Quote       Quote          `json:"quote"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func (p *Pending) View() View {
	return View{
		ID:          p.ID,
		State:       p.State(),
		Kind:        p.Request.Kind,
		Description: p.Request.Description,
		Details:     p.Request.Details,
		Quote:       p.Quote,
		CreatedAt:   p.CreatedAt,
	}
}
