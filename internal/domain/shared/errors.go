// Package shared contains common domain types, errors and events used across
// the progression engine. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds, checked with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState = errors.New("invalid state")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "streak", "achievement"
	Op      string // Operation that failed, e.g., "AwardXP", "ApplyFreeze"
	Kind    error  // Base error kind for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches either the kind or the wrapped error.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Ledger errors
var (
	ErrInvalidAmount   = NewDomainError("ledger", "AwardXP", ErrInvalidInput, "xp amount must be a positive integer")
	ErrInvalidSource   = NewDomainError("ledger", "AwardXP", ErrInvalidInput, "unknown xp source type")
	ErrUserNotFound    = NewDomainError("ledger", "Find", ErrNotFound, "user not found")
	ErrInvalidUserID   = NewDomainError("ledger", "Validate", ErrInvalidID, "invalid user ID")
	ErrInvalidTotalXP  = NewDomainError("ledger", "Validate", ErrNegativeValue, "total xp cannot be negative")
	ErrLedgerContended = NewDomainError("ledger", "AwardXP", ErrConcurrentModification, "user aggregate is locked by another transaction")
)

// Streak errors
var (
	ErrNoFreezeAvailable = NewDomainError("streak", "ApplyFreeze", ErrInvalidState, "no streak freezes available")
)

// Achievement errors
var (
	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrAchievementConflict = NewDomainError("achievement", "Unlock", ErrAlreadyExists, "achievement already unlocked")
	ErrInvalidCondition    = NewDomainError("achievement", "Validate", ErrInvalidInput, "invalid achievement condition")
)

// Leaderboard errors
var (
	ErrInvalidTimeframe = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "timeframe must be weekly, monthly or all-time")
	ErrInvalidPage      = NewDomainError("leaderboard", "Validate", ErrValueOutOfRange, "limit and offset must not be negative")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsInvalidState checks if the error reports a forbidden state transition.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
