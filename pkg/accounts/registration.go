package accounts

import (
	"regexp"
	"strings"

	"ledger-core/pkg/ledger"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	pinPattern   = regexp.MustCompile(`^[0-9]{4}$`)
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// Registration is the input to Create.
type Registration struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Nationality string `json:"nationality"`
	DateOfBirth string `json:"dateOfBirth"`
	Address     string `json:"address"`
	AccountType string `json:"accountType"`
	Password    string `json:"password"`
	PIN         string `json:"pin"`
}

func (r *Registration) normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Nationality = strings.TrimSpace(r.Nationality)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.Address = strings.TrimSpace(r.Address)
	r.AccountType = strings.TrimSpace(r.AccountType)
}

// Validate returns the first invalid field as a *ledger.ValidationError.
func (r Registration) Validate() error {
	required := []struct{ field, value string }{
		{"fullName", r.FullName},
		{"nationality", r.Nationality},
		{"dateOfBirth", r.DateOfBirth},
		{"address", r.Address},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return ledger.Invalid(f.field, "required")
		}
	}
	if !emailPattern.MatchString(strings.TrimSpace(r.Email)) {
		return ledger.Invalid("email", "not a valid email address")
	}
	if strings.TrimSpace(r.Phone) == "" {
		return ledger.Invalid("phone", "required")
	}
	if len(r.Password) < MinPasswordLength {
		return ledger.Invalid("password", "must be at least 8 characters")
	}
	if strings.TrimSpace(r.AccountType) == "" {
		return ledger.Invalid("accountType", "required")
	}
	if !pinPattern.MatchString(r.PIN) {
		return ledger.Invalid("pin", "must be exactly 4 digits")
	}
	return nil
}
