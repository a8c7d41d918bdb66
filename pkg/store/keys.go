package store

import (
	"fmt"
	"strings"
	"unicode"
)

const maxKeyLength = 250

// ValidateKey checks that key is non-empty, at most 250 bytes, free of
// control characters and not padded with whitespace.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: key too long (max %d characters)", ErrInvalidKey, maxKeyLength)
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: key contains control character", ErrInvalidKey)
		}
	}

	if strings.TrimSpace(key) != key {
		return fmt.Errorf("%w: key has leading or trailing whitespace", ErrInvalidKey)
	}

	return nil
}

// KeyPattern builds namespaced document keys such as "ledger:users".
type KeyPattern struct {
	prefix    string
	separator string
}

// NewKeyPattern creates a pattern. An empty separator defaults to ":".
func NewKeyPattern(prefix, separator string) *KeyPattern {
	if separator == "" {
		separator = ":"
	}
	return &KeyPattern{
		prefix:    prefix,
		separator: separator,
	}
}

// Build joins the prefix and parts with the separator. An empty prefix is
// skipped so Build("users") on a bare pattern yields "users".
func (kp *KeyPattern) Build(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if kp.prefix != "" {
		all = append(all, kp.prefix)
	}
	all = append(all, parts...)
	return strings.Join(all, kp.separator)
}

// MustBuild is Build that panics on an invalid result. Only for keys built
// from constants.
func (kp *KeyPattern) MustBuild(parts ...string) string {
	key := kp.Build(parts...)
	if err := ValidateKey(key); err != nil {
		panic(fmt.Sprintf("invalid key generated: %v", err))
	}
	return key
}
