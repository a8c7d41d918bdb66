package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the transaction type.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindTransfer Kind = "transfer"
	KindPayment  Kind = "payment"
	KindCrypto   Kind = "crypto"
	KindFlight   Kind = "flight"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDeposit, KindTransfer, KindPayment, KindCrypto, KindFlight:
		return true
	}
	return false
}

// Direction returns the balance direction for k. Deposits credit; every
// other kind debits.
func (k Kind) Direction() Direction {
	if k == KindDeposit {
		return Credit
	}
	return Debit
}

// Direction is the sign of a transaction's balance effect.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Status is a transaction's outcome. Only StatusSuccess is ever appended
// to the log; the others describe attempts reported to callers.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Currency is the only currency accounts are held in.
const Currency = "USD"

// Account is a registered user and their balance.
type Account struct {
	ID            string          `json:"id"`
	FullName      string          `json:"fullName"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone,omitempty"`
	Nationality   string          `json:"nationality,omitempty"`
	DateOfBirth   string          `json:"dateOfBirth,omitempty"`
	Address       string          `json:"address,omitempty"`
	AccountType   string          `json:"accountType"`
	AccountNumber string          `json:"accountNumber"`
	RoutingNumber string          `json:"routingNumber"`
	PasswordHash  string          `json:"passwordHash"`
	PIN           string          `json:"pin"`
	Balance       decimal.Decimal `json:"balance"`
	Tier          string          `json:"tier"`
	DailyLimit    decimal.Decimal `json:"dailyLimit"`
	Card          Card            `json:"card"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Card is the account's virtual debit card.
type Card struct {
	Number     string `json:"number"`
	HolderName string `json:"holderName"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	Active     bool   `json:"active"`
	Blocked    bool   `json:"blocked"`
}

// Public is the account as shown to its owner: no password hash, no PIN,
// no CVV.
type Public struct {
	ID            string          `json:"id"`
	FullName      string          `json:"fullName"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone,omitempty"`
	AccountType   string          `json:"accountType"`
	AccountNumber string          `json:"accountNumber"`
	RoutingNumber string          `json:"routingNumber"`
	Balance       decimal.Decimal `json:"balance"`
	Tier          string          `json:"tier"`
	DailyLimit    decimal.Decimal `json:"dailyLimit"`
	Card          PublicCard      `json:"card"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// PublicCard shows only the last four card digits.
type PublicCard struct {
	Last4      string `json:"last4"`
	HolderName string `json:"holderName"`
	Expiry     string `json:"expiry"`
	Active     bool   `json:"active"`
	Blocked    bool   `json:"blocked"`
}

// Public strips secrets from a.
func (a Account) Public() Public {
	last4 := a.Card.Number
	if n := len(last4); n > 4 {
		last4 = last4[n-4:]
	}
	return Public{
		ID:            a.ID,
		FullName:      a.FullName,
		Email:         a.Email,
		Phone:         a.Phone,
		AccountType:   a.AccountType,
		AccountNumber: a.AccountNumber,
		RoutingNumber: a.RoutingNumber,
		Balance:       a.Balance,
		Tier:          a.Tier,
		DailyLimit:    a.DailyLimit,
		Card: PublicCard{
			Last4:      last4,
			HolderName: a.Card.HolderName,
			Expiry:     a.Card.Expiry,
			Active:     a.Card.Active,
			Blocked:    a.Card.Blocked,
		},
		CreatedAt: a.CreatedAt,
	}
}

// Transaction is an immutable committed ledger entry.
type Transaction struct {
	ID        string
	UserID    string
	Reference string
	Kind      Kind
	Direction Direction
	// Amount is the unsigned amount the caller requested.
	Amount decimal.Decimal
	Fee    decimal.Decimal
	// Net is the signed delta applied to the balance.
	Net         decimal.Decimal
	Currency    string
	Status      Status
	Description string
	Details     Details
	CreatedAt   time.Time
}
