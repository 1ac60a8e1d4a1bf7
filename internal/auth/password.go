package auth

import (
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// Usernames double as command arguments, so they are restricted to
// characters that never need quoting.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword compares a bcrypt hashed password with its plaintext version.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidUsername reports whether name can be registered.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}
