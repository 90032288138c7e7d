package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate executes all rules and returns the first encountered violation.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

const (
	minPasswordLength = 10
	minStrengthScore  = 2
)

// DefaultPasswordValidator applies length, character class, and strength rules.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		PasswordRuleFunc(minLengthRule),
		PasswordRuleFunc(characterClassRule),
		PasswordRuleFunc(strengthRule),
	)
}

func minLengthRule(password string) error {
	if len(password) < minPasswordLength {
		return &PasswordValidationError{
			Code:    "too_short",
			Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength),
		}
	}
	return nil
}

func characterClassRule(password string) error {
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return &PasswordValidationError{
			Code:    "missing_classes",
			Message: "password must contain both letters and digits",
		}
	}
	return nil
}

func strengthRule(password string) error {
	result := zxcvbn.PasswordStrength(password, nil)
	if result.Score < minStrengthScore {
		return &PasswordValidationError{
			Code:    "too_weak",
			Message: "password is too easy to guess",
		}
	}
	return nil
}
