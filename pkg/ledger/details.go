package ledger

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Details is the kind-specific payload of a transaction. Each variant
// carries its own required fields and checks them in Validate.
type Details interface {
	Kind() Kind
	Validate() error
}

// Deposit methods.
const (
	DepositCash     = "cash"
	DepositCheck    = "check"
	DepositTransfer = "transfer"
	DepositMobile   = "mobile"
)

type DepositDetails struct {
	Method      string `json:"method"`
	CheckNumber string `json:"checkNumber,omitempty"`
}

func (DepositDetails) Kind() Kind { return KindDeposit }

func (d DepositDetails) Validate() error {
	switch d.Method {
	case DepositCash, DepositTransfer, DepositMobile:
		return nil
	case DepositCheck:
		if strings.TrimSpace(d.CheckNumber) == "" {
			return Invalid("details.checkNumber", "required for check deposits")
		}
		return nil
	case "":
		return Invalid("details.method", "required")
	default:
		return Invalid("details.method", fmt.Sprintf("unknown deposit method %q", d.Method))
	}
}

// Transfer scopes.
const (
	ScopeDomestic      = "domestic"
	ScopeInternational = "international"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

type TransferDetails struct {
	Scope         string `json:"scope"`
	RecipientName string `json:"recipientName"`
	// AccountNumber is required for domestic transfers.
	AccountNumber string `json:"accountNumber,omitempty"`
	Method        string `json:"method,omitempty"`
	// IBAN and Currency are required for international transfers.
	IBAN     string `json:"iban,omitempty"`
	Currency string `json:"currency,omitempty"`
}

func (TransferDetails) Kind() Kind { return KindTransfer }

func (d TransferDetails) Validate() error {
	if strings.TrimSpace(d.RecipientName) == "" {
		return Invalid("details.recipientName", "required")
	}
	switch d.Scope {
	case ScopeDomestic:
		if strings.TrimSpace(d.AccountNumber) == "" {
			return Invalid("details.accountNumber", "required for domestic transfers")
		}
	case ScopeInternational:
		if strings.TrimSpace(d.IBAN) == "" {
			return Invalid("details.iban", "required for international transfers")
		}
		if !currencyCode.MatchString(d.Currency) {
			return Invalid("details.currency", "must be a three-letter currency code")
		}
	case "":
		return Invalid("details.scope", "required")
	default:
		return Invalid("details.scope", fmt.Sprintf("unknown transfer scope %q", d.Scope))
	}
	return nil
}

type PaymentDetails struct {
	Provider string `json:"provider"`
	Account  string `json:"account"`
}

func (PaymentDetails) Kind() Kind { return KindPayment }

func (d PaymentDetails) Validate() error {
	if strings.TrimSpace(d.Provider) == "" {
		return Invalid("details.provider", "required")
	}
	if strings.TrimSpace(d.Account) == "" {
		return Invalid("details.account", "required")
	}
	return nil
}

// CryptoDetails names the asset bought. Rate and Quantity are filled in by
// the engine at quote time.
type CryptoDetails struct {
	Symbol   string          `json:"symbol"`
	Rate     decimal.Decimal `json:"rate"`
	Quantity decimal.Decimal `json:"quantity"`
}

func (CryptoDetails) Kind() Kind { return KindCrypto }

func (d CryptoDetails) Validate() error {
	if d.Symbol == "" {
		return Invalid("details.symbol", "required")
	}
	if _, ok := CryptoRate(d.Symbol); !ok {
		return Invalid("details.symbol", fmt.Sprintf("unsupported asset %q", d.Symbol))
	}
	return nil
}

// Cabin classes.
const (
	ClassEconomy  = "economy"
	ClassPremium  = "premium"
	ClassBusiness = "business"
	ClassFirst    = "first"
)

type FlightDetails struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Date      string `json:"date"`
	Passenger string `json:"passenger"`
	Class     string `json:"class"`
}

func (FlightDetails) Kind() Kind { return KindFlight }

func (d FlightDetails) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"details.from", d.From},
		{"details.to", d.To},
		{"details.date", d.Date},
		{"details.passenger", d.Passenger},
	} {
		if strings.TrimSpace(f.value) == "" {
			return Invalid(f.name, "required")
		}
	}
	if strings.EqualFold(strings.TrimSpace(d.From), strings.TrimSpace(d.To)) {
		return Invalid("details.to", "must differ from origin")
	}
	if _, err := QuoteFlight(d.Class); err != nil {
		return err
	}
	return nil
}

// UnmarshalDetails decodes raw into the variant for kind.
func UnmarshalDetails(kind Kind, raw json.RawMessage) (Details, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, Invalid("details", "required")
	}

	var d Details
	var err error
	switch kind {
	case KindDeposit:
		var v DepositDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case KindTransfer:
		var v TransferDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case KindPayment:
		var v PaymentDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case KindCrypto:
		var v CryptoDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case KindFlight:
		var v FlightDetails
		err = json.Unmarshal(raw, &v)
		d = v
	default:
		return nil, Invalid("kind", fmt.Sprintf("unknown transaction kind %q", kind))
	}
	if err != nil {
		return nil, Invalid("details", err.Error())
	}
	return d, nil
}

type transactionJSON struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Reference   string          `json:"reference"`
	Kind        Kind            `json:"kind"`
	Direction   Direction       `json:"direction"`
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	Net         decimal.Decimal `json:"net"`
	Currency    string          `json:"currency"`
	Status      Status          `json:"status"`
	Description string          `json:"description"`
	Details     json.RawMessage `json:"details"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// MarshalJSON writes details inline, discriminated by kind.
func (t Transaction) MarshalJSON() ([]byte, error) {
	details, err := json.Marshal(t.Details)
	if err != nil {
		return nil, err
	}
	return json.Marshal(transactionJSON{
		ID:          t.ID,
		UserID:      t.UserID,
		Reference:   t.Reference,
		Kind:        t.Kind,
		Direction:   t.Direction,
		Amount:      t.Amount,
		Fee:         t.Fee,
		Net:         t.Net,
		Currency:    t.Currency,
		Status:      t.Status,
		Description: t.Description,
		Details:     details,
		CreatedAt:   t.CreatedAt,
	})
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw transactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	details, err := UnmarshalDetails(raw.Kind, raw.Details)
	if err != nil {
		return fmt.Errorf("transaction %s: %w", raw.ID, err)
	}
	*t = Transaction{
		ID:          raw.ID,
		UserID:      raw.UserID,
		Reference:   raw.Reference,
		Kind:        raw.Kind,
		Direction:   raw.Direction,
		Amount:      raw.Amount,
		Fee:         raw.Fee,
		Net:         raw.Net,
		Currency:    raw.Currency,
		Status:      raw.Status,
		Description: raw.Description,
		Details:     details,
		CreatedAt:   raw.CreatedAt,
	}
	return nil
}
