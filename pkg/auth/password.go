package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost        = 12
	MinPasswordLen    = 6
	MinUsernameLen    = 4
	MaxUsernameLen    = 20
	RandomPasswordLen = 24 // synthesized for OAuth-created accounts
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9]+$`)

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces the minimum password length
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}
	return nil
}

// ValidateUsername enforces the account username rules: 4-20 characters,
// lowercase alphanumeric only, no spaces.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLen || len(username) > MaxUsernameLen {
		return fmt.Errorf("username must be between %d and %d characters", MinUsernameLen, MaxUsernameLen)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("username must contain only lowercase letters and numbers")
	}
	return nil
}

// GenerateRandomPassword synthesizes a strong password for OAuth-created
// accounts. The account holder never sees it; it only exists so the password
// column is never empty.
func GenerateRandomPassword() (string, error) {
	bytes := make([]byte, RandomPasswordLen)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random password: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
