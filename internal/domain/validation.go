package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validation errors
var (
	ErrInvalidClientID  = errors.New("invalid client identifier")
	ErrInvalidShareID   = errors.New("invalid share identifier")
	ErrInvalidAccountID = errors.New("invalid account identifier")
	ErrInvalidAssetID   = errors.New("invalid asset identifier")
)

// Validation constants
const (
	MaxIdentifierLength = 128
	MinIdentifierLength = 1
)

// Identifiers participate in slot derivation, so they are restricted to a
// flat, unambiguous alphabet.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._:-]*$`)

func validateIdentifier(id string, sentinel error) error {
	id = strings.TrimSpace(id)

	if len(id) < MinIdentifierLength {
		return fmt.Errorf("%w: must not be empty", sentinel)
	}

	if len(id) > MaxIdentifierLength {
		return fmt.Errorf("%w: exceeds %d characters", sentinel, MaxIdentifierLength)
	}

	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("%w: contains forbidden characters", sentinel)
	}

	return nil
}

// ValidateClientID validates a client identifier.
func ValidateClientID(id string) error {
	return validateIdentifier(id, ErrInvalidClientID)
}

// ValidateShareID validates a share identifier.
func ValidateShareID(id string) error {
	return validateIdentifier(id, ErrInvalidShareID)
}

// ValidateAccountID validates an account identifier.
func ValidateAccountID(id string) error {
	return validateIdentifier(id, ErrInvalidAccountID)
}

// ValidateAssetID validates an asset identifier.
func ValidateAssetID(id string) error {
	return validateIdentifier(id, ErrInvalidAssetID)
}

// ValidateAmount validates a deposit amount.
func ValidateAmount(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters.
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
