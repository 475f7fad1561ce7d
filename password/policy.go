package password

import (
	"errors"
	"strings"
)

// Policy length bounds. Passwords shorter than MinLength are trivially
// guessable; longer than MaxLength are a hashing DoS vector.
const (
	MinLength = 8
	MaxLength = 128
)

// Rule identifies a single policy requirement, so callers can tell the
// user which requirement failed without echoing the password anywhere.
type Rule string

const (
	RuleMinLength Rule = "min_length"
	RuleMaxLength Rule = "max_length"
	RuleLowercase Rule = "lowercase"
	RuleUppercase Rule = "uppercase"
	RuleDigit     Rule = "digit"
	RuleSymbol    Rule = "symbol"
)

// ErrPolicy is the sentinel wrapped by every [PolicyViolation].
var ErrPolicy = errors.New("password policy violation")

// PolicyViolation enumerates every rule the candidate password failed.
// It never carries the password itself.
type PolicyViolation struct {
	Failed []Rule
}

func (v *PolicyViolation) Error() string {
	parts := make([]string, len(v.Failed))
	for i, r := range v.Failed {
		parts[i] = string(r)
	}
	return "password policy violation: " + strings.Join(parts, ", ")
}

// Unwrap lets callers match with errors.Is(err, ErrPolicy).
func (v *PolicyViolation) Unwrap() error {
	return ErrPolicy
}

// Validate checks password against all policy rules: length within
// [MinLength, MaxLength] and at least one lowercase letter, uppercase
// letter, digit, and non-alphanumeric character. All failed rules are
// reported at once.
func Validate(password string) error {
	var failed []Rule

	if len(password) < MinLength {
		failed = append(failed, RuleMinLength)
	}
	if len(password) > MaxLength {
		failed = append(failed, RuleMaxLength)
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}

	if !lower {
		failed = append(failed, RuleLowercase)
	}
	if !upper {
		failed = append(failed, RuleUppercase)
	}
	if !digit {
		failed = append(failed, RuleDigit)
	}
	if !symbol {
		failed = append(failed, RuleSymbol)
	}

	if len(failed) > 0 {
		return &PolicyViolation{Failed: failed}
	}
	return nil
}
