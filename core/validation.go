package core

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PasswordPolicy is the named strength policy applied at registration.
type PasswordPolicy struct {
	MinLength        int // in characters
	MaxLength        int // in bytes, bcrypt reads at most 72
	RequireMixedCase bool
	RequireDigit     bool
	RequireSymbol    bool
}

// DefaultPasswordPolicy is {min_length: 8, require_mixed_case: true, require_digit: true}.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		MaxLength:        72,
		RequireMixedCase: true,
		RequireDigit:     true,
	}
}

// Check returns one detail string per unmet rule.
func (p PasswordPolicy) Check(password string) []string {
	var problems []string

	if p.MinLength > 0 && utf8.RuneCountInString(password) < p.MinLength {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		problems = append(problems, fmt.Sprintf("must be at most %d bytes", p.MaxLength))
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	if p.RequireMixedCase && !(upper && lower) {
		problems = append(problems, "must contain upper and lower case letters")
	}
	if p.RequireDigit && !digit {
		problems = append(problems, "must contain a digit")
	}
	if p.RequireSymbol && !symbol {
		problems = append(problems, "must contain a symbol")
	}

	return problems
}

// ValidateEmailFormat accepts a bare address only ("a@x.com", not "A <a@x.com>").
func ValidateEmailFormat(email string) error {
	if email == "" {
		return errors.New("is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("is not a valid email address")
	}
	return nil
}

// EmailLookup is the read-only collaborator the validator uses for the
// uniqueness pre-check.
type EmailLookup interface {
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
}

// Validator runs every registration check and collects all failures.
type Validator struct {
	Policy   PasswordPolicy
	Accounts EmailLookup
}

// Validate returns the violated checks, or nil when input is acceptable.
// The email lookup is advisory; stores enforce uniqueness on insert.
// A lookup failure other than ErrAccountNotFound is returned as an error.
func (v *Validator) Validate(ctx context.Context, input RegisterInput) ([]Violation, error) {
	var violations []Violation

	if err := ValidateEmailFormat(input.Email); err != nil {
		violations = append(violations, Violation{Category: CategoryEmail, Detail: "email " + err.Error()})
	} else if v.Accounts != nil {
		existing, err := v.Accounts.GetAccountByEmail(ctx, input.Email)
		switch {
		case err == nil && existing != nil:
			violations = append(violations, Violation{Category: CategoryEmailTaken, Detail: ErrEmailTaken.Error()})
		case err != nil && !errors.Is(err, ErrAccountNotFound):
			return nil, fmt.Errorf("failed to check existing account: %w", err)
		}
	}

	for _, problem := range v.Policy.Check(input.Password) {
		violations = append(violations, Violation{Category: CategoryPassword, Detail: "password " + problem})
	}

	if input.Password != input.PasswordConfirmation {
		violations = append(violations, Violation{Category: CategoryPasswordConfirmation, Detail: "passwords do not match"})
	}

	if strings.TrimSpace(input.DisplayName) == "" {
		violations = append(violations, Violation{Category: CategoryDisplayName, Detail: "display name is required"})
	}

	if !input.EULA {
		violations = append(violations, Violation{Category: CategoryEULA, Detail: "terms must be accepted"})
	}

	return violations, nil
}
