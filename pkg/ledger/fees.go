package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	minimumAmount       = decimal.NewFromInt(1)
	minimumCryptoAmount = decimal.NewFromInt(10)
	hundred             = decimal.NewFromInt(100)
)

// MinimumAmount is the smallest amount accepted for kind.
func MinimumAmount(kind Kind) decimal.Decimal {
	if kind == KindCrypto {
		return minimumCryptoAmount
	}
	return minimumAmount
}

// FeeSchedule is the fixed fee table. Percentages are whole-number
// percents, so 1 means 1%.
type FeeSchedule struct {
	DepositPercent           decimal.Decimal
	DomesticTransferPercent  decimal.Decimal
	InternationalTransferFee decimal.Decimal
	InternationalPercent     decimal.Decimal
	PaymentFee               decimal.Decimal
	CryptoFee                decimal.Decimal
	FlightFee                decimal.Decimal
}

// DefaultFees returns the bank's published fee table.
func DefaultFees() FeeSchedule {
	return FeeSchedule{
		DepositPercent:           decimal.NewFromInt(1),
		DomesticTransferPercent:  decimal.NewFromInt(1),
		InternationalTransferFee: decimal.NewFromInt(35),
		InternationalPercent:     decimal.NewFromInt(2),
		PaymentFee:               decimal.Zero,
		CryptoFee:                decimal.RequireFromString("2.49"),
		FlightFee:                decimal.NewFromInt(25),
	}
}

// Fee returns the fee for amount under details, rounded half-up to cents.
func (f FeeSchedule) Fee(details Details, amount decimal.Decimal) (decimal.Decimal, error) {
	var fee decimal.Decimal
	switch d := details.(type) {
	case DepositDetails:
		fee = percent(amount, f.DepositPercent)
	case TransferDetails:
		if d.Scope == ScopeInternational {
			fee = f.InternationalTransferFee.Add(percent(amount, f.InternationalPercent))
		} else {
			fee = percent(amount, f.DomesticTransferPercent)
		}
	case PaymentDetails:
		fee = f.PaymentFee
	case CryptoDetails:
		fee = f.CryptoFee
	case FlightDetails:
		fee = f.FlightFee
	default:
		return decimal.Zero, fmt.Errorf("ledger: no fee rule for %T", details)
	}
	return RoundCents(fee), nil
}

func percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// RoundCents rounds d half away from zero to two places.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

var cryptoRates = map[string]decimal.Decimal{
	"bitcoin":  decimal.RequireFromString("34567.89"),
	"ethereum": decimal.RequireFromString("1845.67"),
	"litecoin": decimal.RequireFromString("78.90"),
	"cardano":  decimal.RequireFromString("0.45"),
	"solana":   decimal.RequireFromString("24.56"),
}

// CryptoRate returns the simulated USD price of one unit of symbol.
func CryptoRate(symbol string) (decimal.Decimal, bool) {
	rate, ok := cryptoRates[symbol]
	return rate, ok
}

// CryptoQuantity is how many units amount buys at rate, to 8 places.
func CryptoQuantity(amount, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return amount.DivRound(rate, 8)
}

var flightFares = map[string]decimal.Decimal{
	ClassEconomy:  decimal.NewFromInt(450),
	ClassPremium:  decimal.NewFromInt(750),
	ClassBusiness: decimal.NewFromInt(1200),
	ClassFirst:    decimal.NewFromInt(2000),
}

var flightTaxPercent = decimal.NewFromInt(15)

// FlightQuote is a simulated fare.
type FlightQuote struct {
	Class    string          `json:"class"`
	BaseFare decimal.Decimal `json:"baseFare"`
	Taxes    decimal.Decimal `json:"taxes"`
	Total    decimal.Decimal `json:"total"`
}

// QuoteFlight prices a ticket in class: base fare plus 15% taxes.
func QuoteFlight(class string) (FlightQuote, error) {
	base, ok := flightFares[class]
	if !ok {
		return FlightQuote{}, Invalid("details.class", fmt.Sprintf("unknown cabin class %q", class))
	}
	taxes := RoundCents(percent(base, flightTaxPercent))
	return FlightQuote{
		Class:    class,
		BaseFare: base,
		Taxes:    taxes,
		Total:    base.Add(taxes),
	}, nil
}
