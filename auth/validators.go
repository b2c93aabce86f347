package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ValidateUsername checks username format: 3-30 characters, letters,
// numbers, and underscores, starting with a letter.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if len(username) < 3 {
		return errors.New("username must be at least 3 characters long")
	}
	if len(username) > 30 {
		return errors.New("username cannot exceed 30 characters")
	}
	if !usernamePattern.MatchString(username) {
		return errors.New("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidatePassword checks password requirements: longer than 4 characters
// with no leading or trailing spaces.
func ValidatePassword(password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}
	if len(password) <= 4 {
		return errors.New("password must be longer than 4 characters")
	}
	if password != strings.TrimSpace(password) {
		return errors.New("password cannot start or end with spaces")
	}
	return nil
}

// ValidatePasswordMatch checks that a password and its confirmation agree
func ValidatePasswordMatch(password, confirm string) error {
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	return nil
}
