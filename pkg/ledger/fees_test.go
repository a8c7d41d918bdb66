package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFeeSchedule_Fee(t *testing.T) {
	fees := DefaultFees()

	tests := []struct {
		name    string
		details Details
		amount  string
		want    string
	}{
		{"deposit one percent", DepositDetails{Method: DepositCash}, "200.00", "2.00"},
		{"deposit rounds half up", DepositDetails{Method: DepositCash}, "12.50", "0.13"},
		{"domestic transfer", TransferDetails{Scope: ScopeDomestic}, "100.00", "1.00"},
		{"international transfer", TransferDetails{Scope: ScopeInternational}, "100.00", "37.00"},
		{"international rounds", TransferDetails{Scope: ScopeInternational}, "10.25", "35.21"},
		{"bill payment is free", PaymentDetails{}, "10.00", "0.00"},
		{"crypto flat fee", CryptoDetails{Symbol: "bitcoin"}, "500.00", "2.49"},
		{"flight flat fee", FlightDetails{}, "517.50", "25.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fees.Fee(tt.details, d(tt.amount))
			if err != nil {
				t.Fatalf("Fee failed: %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("Expected fee %s, got %s", tt.want, got.StringFixed(2))
			}
		})
	}
}

func TestFeeSchedule_Fee_UnknownDetails(t *testing.T) {
	if _, err := DefaultFees().Fee(nil, d("10")); err == nil {
		t.Error("Expected error for nil details")
	}
}

func TestCryptoRate(t *testing.T) {
	rate, ok := CryptoRate("ethereum")
	if !ok {
		t.Fatal("Expected ethereum to be supported")
	}
	if !rate.Equal(d("1845.67")) {
		t.Errorf("Expected 1845.67, got %s", rate)
	}
	if _, ok := CryptoRate("dogecoin"); ok {
		t.Error("Expected dogecoin to be unsupported")
	}
}

func TestCryptoQuantity(t *testing.T) {
	got := CryptoQuantity(d("100"), d("34567.89"))
	if !got.Equal(d("0.00289286")) {
		t.Errorf("Expected 0.00289286, got %s", got)
	}
	if !CryptoQuantity(d("100"), decimal.Zero).IsZero() {
		t.Error("Expected zero quantity for a zero rate")
	}
}

func TestQuoteFlight(t *testing.T) {
	tests := []struct {
		class string
		total string
	}{
		{ClassEconomy, "517.50"},
		{ClassPremium, "862.50"},
		{ClassBusiness, "1380.00"},
		{ClassFirst, "2300.00"},
	}
	for _, tt := range tests {
		q, err := QuoteFlight(tt.class)
		if err != nil {
			t.Fatalf("QuoteFlight(%s) failed: %v", tt.class, err)
		}
		if !q.Total.Equal(d(tt.total)) {
			t.Errorf("%s: expected total %s, got %s", tt.class, tt.total, q.Total)
		}
		if !q.BaseFare.Add(q.Taxes).Equal(q.Total) {
			t.Errorf("%s: base plus taxes should equal total", tt.class)
		}
	}

	if _, err := QuoteFlight("cargo"); err == nil {
		t.Error("Expected error for unknown class")
	}
}

func TestMinimumAmount(t *testing.T) {
	if !MinimumAmount(KindCrypto).Equal(d("10")) {
		t.Errorf("Expected crypto minimum 10, got %s", MinimumAmount(KindCrypto))
	}
	if !MinimumAmount(KindPayment).Equal(d("1")) {
		t.Errorf("Expected payment minimum 1, got %s", MinimumAmount(KindPayment))
	}
}
