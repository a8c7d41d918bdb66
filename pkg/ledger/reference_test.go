package ledger

import (
	"regexp"
	"testing"
	"time"
)

var referenceFormat = regexp.MustCompile(`^REF-2026-[0-9A-Z]{5}-[0-9A-Z]{6}$`)

func TestNewReference(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		ref, err := NewReference(now)
		if err != nil {
			t.Fatalf("NewReference failed: %v", err)
		}
		if !referenceFormat.MatchString(ref) {
			t.Fatalf("Reference %q does not match format", ref)
		}
		if seen[ref] {
			t.Fatalf("Duplicate reference %s", ref)
		}
		seen[ref] = true
	}
}
