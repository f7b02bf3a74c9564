package password

import (
	"strings"
	"unicode/utf8"
)

// Validate checks password policy. It does not mutate input.
func (c Config) Validate(password string) error {
	// Count characters (runes), not bytes, to be user-friendly.
	n := utf8.RuneCountInString(password)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	// bcrypt cannot hash past 72 bytes; multibyte runes reach it below MaxLength.
	if c.Scheme == SchemeBcrypt && len(password) > bcryptMaxBytes {
		return ErrPasswordTooLong
	}
	if strings.ContainsAny(password, "\r\n") {
		return ErrWeakPassword
	}

	if c.Policy.RequireClasses && !hasRequiredClasses(password) {
		return ErrWeakPassword
	}

	return nil
}

// hasRequiredClasses reports whether pw has at least one ASCII upper, one ASCII
// lower, one ASCII digit and one character outside [A-Za-z0-9_].
func hasRequiredClasses(pw string) bool {
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case r == '_':
			// word character, counts for nothing
		default:
			special = true
		}
	}
	return upper && lower && digit && special
}
