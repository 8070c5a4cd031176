package identity

import (
	"regexp"
	"unicode"

	"github.com/medichron/medichron/internal/platform/apperr"
)

const nationalIDLength = 12

var (
	nationalIDPattern = regexp.MustCompile(`^[0-9]{12}$`)
	phonePattern      = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	emailPattern      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernamePattern   = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,64}$`)
)

// ValidatePassword enforces the password policy: minimum 8 characters with
// at least one uppercase letter, one lowercase letter, and one digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return apperr.Validationf("password must be at least 8 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		return apperr.Validationf("password must contain an uppercase letter")
	}
	if !hasLower {
		return apperr.Validationf("password must contain a lowercase letter")
	}
	if !hasDigit {
		return apperr.Validationf("password must contain a digit")
	}
	return nil
}

// ValidateNationalID enforces the national-ID format: exactly 12 digits.
func ValidateNationalID(id string) error {
	if !nationalIDPattern.MatchString(id) {
		return apperr.Validationf("national_id must be exactly %d digits", nationalIDLength)
	}
	return nil
}

// ValidatePhone enforces the phone format: 10-15 digits, optional leading +.
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return apperr.Validationf("phone must be 10-15 digits")
	}
	return nil
}

// ValidateEmail rejects obviously malformed addresses. Full RFC validation
// is the mail system's problem; this catches typos before they become
// unreachable accounts.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return apperr.Validationf("email is not valid")
	}
	return nil
}

// ValidateUsername enforces the username format: 3-64 word characters,
// dots, or dashes.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return apperr.Validationf("username must be 3-64 letters, digits, '.', '-', or '_'")
	}
	return nil
}
