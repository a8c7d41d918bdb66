package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Request is a drafted transaction as submitted by a caller.
type Request struct {
	Kind        Kind
	Amount      decimal.Decimal
	Description string
	Details     Details
}

// Validate runs the structural checks, returning the first violation as a
// *ValidationError.
func (r Request) Validate() error {
	if !r.Kind.Valid() {
		return Invalid("kind", fmt.Sprintf("unknown transaction kind %q", r.Kind))
	}
	if r.Details == nil {
		return Invalid("details", "required")
	}
	if r.Details.Kind() != r.Kind {
		return Invalid("details", fmt.Sprintf("%s details on a %s request", r.Details.Kind(), r.Kind))
	}
	if floor := MinimumAmount(r.Kind); r.Amount.LessThan(floor) {
		return Invalid("amount", fmt.Sprintf("minimum is $%s", floor.StringFixed(2)))
	}
	if !r.Amount.Equal(RoundCents(r.Amount)) {
		return Invalid("amount", "at most two decimal places")
	}
	return r.Details.Validate()
}

// DefaultDescription is used when the caller leaves Description empty.
func (r Request) DefaultDescription() string {
	if s := strings.TrimSpace(r.Description); s != "" {
		return s
	}
	switch d := r.Details.(type) {
	case DepositDetails:
		return "Deposit via " + d.Method
	case TransferDetails:
		if d.Scope == ScopeInternational {
			return "International transfer to " + d.RecipientName
		}
		return "Transfer to " + d.RecipientName
	case PaymentDetails:
		return "Bill payment to " + d.Provider
	case CryptoDetails:
		return "Purchase " + strings.ToUpper(d.Symbol)
	case FlightDetails:
		return fmt.Sprintf("Flight %s to %s", d.From, d.To)
	}
	return string(r.Kind)
}
