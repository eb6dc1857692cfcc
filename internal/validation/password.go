// Package validation checks user supplied text before it reaches a service.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLen = 12
	maxPasswordLen = 128
)

var ErrPasswordMismatch = errors.New("passwords do not match")

// passwordClasses must each appear at least once.
var passwordClasses = []struct {
	name string
	in   func(rune) bool
}{
	{"uppercase letter", unicode.IsUpper},
	{"lowercase letter", unicode.IsLower},
	{"digit", unicode.IsDigit},
	{"special character", func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }},
}

// ValidatePassword enforces the account password policy.
func ValidatePassword(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n < minPasswordLen:
		return fmt.Errorf("password must be at least %d characters long", minPasswordLen)
	case n > maxPasswordLen:
		return fmt.Errorf("password must not exceed %d characters", maxPasswordLen)
	}
	for _, class := range passwordClasses {
		if !strings.ContainsFunc(password, class.in) {
			return fmt.Errorf("password must contain at least one %s", class.name)
		}
	}
	return nil
}

// ValidatePasswordChange checks a new password against its confirmation.
func ValidatePasswordChange(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	return ValidatePassword(password)
}
