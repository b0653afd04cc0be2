package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrValidation marks input rejected before any storage mutation.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("username or email already exists")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	// ErrOverSell is a validation error: the sale exceeds the lot quantity.
	ErrOverSell = fmt.Errorf("%w: sell quantity exceeds lot quantity", ErrValidation)
	// ErrStorage is the generic failure every driver error is converted to.
	ErrStorage = errors.New("storage failure")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
