package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrCheckoutInProgress = errors.New("checkout already in progress for this cart")
)

// ValidationError is a precondition failure detected before any store call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AuthorizationError means the principal's role does not permit the action.
type AuthorizationError struct {
	Role   Role
	Action string
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s not permitted: %s", e.Action, e.Reason)
	}
	return fmt.Sprintf("role %q may not %s", e.Role, e.Action)
}

// PersistenceError wraps a rejected store write or read.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// InsufficientStockError is returned when a conditional stock decrement finds fewer
// units on hand than requested at commit time.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (id %d): requested %d, available %d",
		e.Name, e.ProductID, e.Requested, e.Available)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsAuthorization(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
