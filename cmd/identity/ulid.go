package identity

import (
	"time"

	"unet/cmd/identity/ids"
)

// NewULID returns a new ULID (26-char string).
func NewULID(now time.Time) (string, error) {
	return ids.NewULID(now)
}

// ValidID reports whether id is a well-formed account or device id.
func ValidID(id string) bool {
	return ids.Valid(id)
}
