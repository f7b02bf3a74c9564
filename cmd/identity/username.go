package identity

import "regexp"

const (
	UsernameMinLen = 3
	UsernameMaxLen = 26
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,26}$`)

// ValidUsername reports whether s is an acceptable username.
// Usernames are matched exactly; there is no case folding or trimming.
func ValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// ValidateUsername returns an ErrInvalidInput OpError for unacceptable usernames.
func ValidateUsername(s string) error {
	if !ValidUsername(s) {
		return invalid("identity.ValidateUsername", "username must be 3-26 characters of [A-Za-z0-9_-]")
	}
	return nil
}
