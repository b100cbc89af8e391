package users

import (
	"strings"
	"unicode"
)

// MinPasswordLength is the minimum accepted password length
const MinPasswordLength = 8

// IsValidEmail checks the accepted address shape: a single @ with a
// non empty local part, no whitespace, and at least one dot after the
// @ with characters on both sides. No deliverability or DNS check.
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\r\n") {
		return false
	}

	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}

	domain := email[at+1:]
	dot := strings.LastIndex(domain, ".")

	return dot > 0 && dot < len(domain)-1
}

// IsStrongPassword requires at least MinPasswordLength characters with
// one letter and one digit. No uppercase or symbol requirement, no
// maximum length.
func IsStrongPassword(password string) bool {
	if len(password) < MinPasswordLength {
		return false
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	return hasLetter && hasDigit
}

// NormalizeEmail lowercases and trims an address for storage and
// comparison. Email uniqueness is case insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateSignupCredentials runs the policy gates shared by every
// account creation path.
func ValidateSignupCredentials(fullName, email, password string) error {
	if strings.TrimSpace(fullName) == "" || email == "" || password == "" {
		return NewValidationError("full name, email and password are required")
	}

	if !IsValidEmail(email) {
		return NewValidationError("invalid email format")
	}

	if !IsStrongPassword(password) {
		return NewValidationError("password must be at least 8 characters and include letters and numbers")
	}

	return nil
}
