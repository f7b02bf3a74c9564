package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only looks at the first 72 bytes of input.
const bcryptMaxBytes = 72

func (c Config) hashBcrypt(password string) (string, error) {
	if len(password) > bcryptMaxBytes {
		return "", ErrPasswordTooLong
	}

	cost := c.BcryptCost
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(h), nil
}

func verifyBcrypt(encodedHash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		// Cannot match anything that was hashed successfully.
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}

func bcryptCost(encodedHash string) (int, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return 0, ErrInvalidHash
	}
	return cost, nil
}
