package accounts

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// RoutingNumber is the bank's fixed routing number.
const RoutingNumber = "02688832"

// randomIn returns a uniform integer in [lo, hi).
func randomIn(lo, hi int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(hi-lo))
	if err != nil {
		return 0, fmt.Errorf("accounts: entropy: %w", err)
	}
	return lo + n.Int64(), nil
}

// newAccountNumber returns "7" followed by 13 digits.
func newAccountNumber() (string, error) {
	n, err := randomIn(1_000_000_000_000, 10_000_000_000_000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("7%d", n), nil
}

// newCardNumber returns four space-separated groups of four digits.
func newCardNumber() (string, error) {
	groups := make([]string, 4)
	for i := range groups {
		n, err := randomIn(1000, 10000)
		if err != nil {
			return "", err
		}
		groups[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(groups, " "), nil
}

func newCVV() (string, error) {
	n, err := randomIn(100, 1000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n), nil
}

// cardExpiry is MM/YY two years after now.
func cardExpiry(now time.Time) string {
	return fmt.Sprintf("%02d/%02d", int(now.Month()), (now.Year()+2)%100)
}
