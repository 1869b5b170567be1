// Package validate holds the pure normalization and validation rules shared
// by the HTTP binding layer and the services.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"bookstore/internal/apperr"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 100
)

var (
	ErrInvalidISBN  = apperr.New(apperr.ValidationFailed, "ISBN must be 10 or 13 characters after removing dashes/spaces and contain only digits (ISBN-10 may end with X)")
	ErrWeakPassword = errors.New("weak password")

	ErrPasswordTooShort      = fmt.Errorf("%w: password must be at least %d characters long", ErrWeakPassword, MinPasswordLength)
	ErrPasswordTooLong       = fmt.Errorf("%w: password must be at most %d characters long", ErrWeakPassword, MaxPasswordLength)
	ErrPasswordNoLower       = fmt.Errorf("%w: password must contain at least one lowercase letter", ErrWeakPassword)
	ErrPasswordNoUpper       = fmt.Errorf("%w: password must contain at least one uppercase letter", ErrWeakPassword)
	ErrPasswordNoDigit       = fmt.Errorf("%w: password must contain at least one digit", ErrWeakPassword)
	ErrPasswordNoSpecialChar = fmt.Errorf("%w: password must contain at least one special character", ErrWeakPassword)
)

// EmailRX matches the usual address shape; deliverability is not checked.
var EmailRX = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// NormalizeISBN strips dashes and spaces, uppercases, and checks the shape of
// an ISBN-10 or ISBN-13. Check digits are not verified.
func NormalizeISBN(raw string) (string, error) {
	cleaned := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(raw))

	n := len(cleaned)
	if n != 10 && n != 13 {
		return "", ErrInvalidISBN
	}
	for i := 0; i < n; i++ {
		c := cleaned[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if c == 'X' && i == n-1 && n == 10 {
			continue
		}
		return "", ErrInvalidISBN
	}
	return cleaned, nil
}

// ValidatePasswordStrength returns an error wrapping ErrWeakPassword naming the
// first rule the password breaks.
func ValidatePasswordStrength(password string) error {
	length := len([]rune(password))
	if length < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if length > MaxPasswordLength {
		return ErrPasswordTooLong
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r):
			hasSpecial = true
		}
	}

	switch {
	case !hasLower:
		return ErrPasswordNoLower
	case !hasUpper:
		return ErrPasswordNoUpper
	case !hasDigit:
		return ErrPasswordNoDigit
	case !hasSpecial:
		return ErrPasswordNoSpecialChar
	}
	return nil
}

// PasswordError converts a strength failure into the error returned to callers
func PasswordError(err error) *apperr.Error {
	msg := strings.TrimPrefix(err.Error(), ErrWeakPassword.Error()+": ")
	if len(msg) > 0 {
		msg = strings.ToUpper(msg[:1]) + msg[1:]
	}
	return apperr.Wrap(apperr.ValidationFailed, msg, err)
}

// NormalizeEmail lowercases and trims an address. It never fails; shape is
// checked separately with IsEmail.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// IsEmail reports whether raw looks like an email address
func IsEmail(raw string) bool {
	return len(raw) <= 255 && EmailRX.MatchString(raw)
}
