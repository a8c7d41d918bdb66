package ledger

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewReference returns a human-readable reference of the form
// REF-<year>-<5 base36>-<6 base36>. Uniqueness against the log is the
// caller's job; eleven random base36 characters make a collision unlikely.
func NewReference(now time.Time) (string, error) {
	a, err := randomBase36(5)
	if err != nil {
		return "", err
	}
	b, err := randomBase36(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("REF-%d-%s-%s", now.UTC().Year(), a, b), nil
}

func randomBase36(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("ledger: reference entropy: %w", err)
		}
		sb.WriteByte(base36[idx.Int64()])
	}
	return sb.String(), nil
}

// ReferenceFunc generates references. The engine takes one so tests can
// force collisions.
type ReferenceFunc func(now time.Time) (string, error)
