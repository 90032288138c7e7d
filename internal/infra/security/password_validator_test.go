package security

import (
	"errors"
	"testing"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

func TestDefaultPasswordValidatorSuccess(t *testing.T) {
	validator := DefaultPasswordValidator()

	password := "C0mplex!Passphrase#2025"
	if strength := zxcvbn.PasswordStrength(password, nil); strength.Score < minStrengthScore {
		t.Fatalf("test password unexpectedly weak: score=%d", strength.Score)
	}
	if err := validator.Validate(password); err != nil {
		t.Fatalf("expected password to pass validation, got %v", err)
	}
}

func TestDefaultPasswordValidatorViolations(t *testing.T) {
	validator := DefaultPasswordValidator()

	assertViolation := func(password, expectedCode string) {
		err := validator.Validate(password)
		if err == nil {
			t.Fatalf("expected validation error for %s", expectedCode)
		}
		var vErr *PasswordValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected PasswordValidationError, got %T", err)
		}
		if vErr.Code != expectedCode {
			t.Fatalf("expected %s code, got %s", expectedCode, vErr.Code)
		}
	}

	assertViolation("Short1!", "too_short")
	assertViolation("lettersonlyhere", "missing_classes")
	assertViolation("password12", "too_weak")
}

func TestCustomPasswordValidator(t *testing.T) {
	rejectBanana := PasswordRuleFunc(func(password string) error {
		if password == "banana" {
			return &PasswordValidationError{Code: "banned", Message: "not that one"}
		}
		return nil
	})

	validator := NewPasswordValidator(rejectBanana)

	if err := validator.Validate("banana"); err == nil {
		t.Fatal("expected validation error from custom rule")
	}
	if err := validator.Validate("anything else"); err != nil {
		t.Fatalf("expected password to pass custom validation, got %v", err)
	}
}

func TestNilValidatorErrors(t *testing.T) {
	var validator *PasswordValidator
	if err := validator.Validate("whatever"); err == nil {
		t.Fatal("nil validator should refuse to validate")
	}
}
