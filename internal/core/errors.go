package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinels matched through errors.Is by every typed ledger error.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("conflict")
	ErrInfrastructure    = errors.New("infrastructure error")
)

type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %v", e.Err)
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ValidationError) Unwrap() error        { return e.Err }

// Invalid builds a ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InsufficientFundsError is returned when a withdrawal exceeds a goal's saved amount.
type InsufficientFundsError struct {
	GoalID    string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in goal %q: requested %s, available %s",
		e.GoalID, e.Requested.String(), e.Available.String())
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

type ConflictError struct {
	Entity string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Entity, e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func Conflict(entity, reason string) error {
	return &ConflictError{Entity: entity, Reason: reason}
}

// InfrastructureError wraps storage or unit-of-work failures.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Is(target error) bool { return target == ErrInfrastructure }
func (e *InfrastructureError) Unwrap() error        { return e.Err }

// Infra wraps err as an InfrastructureError unless it already belongs to the
// ledger taxonomy, in which case it is returned unchanged.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsLedgerError(err) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}

// IsLedgerError reports whether err carries one of the taxonomy sentinels.
func IsLedgerError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInfrastructure)
}

// ErrorKind names the taxonomy bucket of err, used in logs and API bodies.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "infrastructure"
	}
}
