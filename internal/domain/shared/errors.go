// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// ═══════════════════════════════════════════════════════════════════════════
// Kinds
// Базовые ошибки - это "род" ошибки. Конкретные ошибки доменов ниже
// ссылаются на род через DomainError.Kind, а интерфейс (HTTP) решает
// только по роду через ClassOf.
// ═══════════════════════════════════════════════════════════════════════════

var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	ErrInvalidState           = errors.New("invalid state")
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError carries where an error happened (Domain, Op), what kind it is
// and an optional cause.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap exposes the cause, or the kind when there is no cause.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches both the kind and anything in the cause chain, so a wrapped
// ErrUnknownActivityType is still recognized after a second wrap.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Unavailable wraps a storage failure as retryable.
func Unavailable(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrServiceUnavailable, "storage unavailable", err)
}

// ═══════════════════════════════════════════════════════════════════════════
// Domain errors
// ═══════════════════════════════════════════════════════════════════════════

var (
	ErrUnknownActivityType = NewDomainError("ledger", "Validate", ErrInvalidInput, "unknown activity type")
	ErrDerivedActivityType = NewDomainError("ledger", "Validate", ErrInvalidInput, "activity type is granted by the system only")
	ErrNegativePoints      = NewDomainError("ledger", "Validate", ErrNegativeValue, "points cannot be negative")
	ErrMissingStudent      = NewDomainError("ledger", "Validate", ErrEmptyValue, "student id is required")
	ErrMissingInstitution  = NewDomainError("ledger", "Validate", ErrEmptyValue, "institution id is required")

	ErrMalformedCriteria   = NewDomainError("badge", "Evaluate", ErrInvalidFormat, "malformed unlock criteria")
	ErrUnknownCriteriaType = NewDomainError("badge", "Evaluate", ErrInvalidInput, "unknown criteria type")

	ErrStreakConflict = NewDomainError("streak", "Save", ErrConcurrentModification, "streak was modified concurrently")

	ErrInvalidLimit = NewDomainError("leaderboard", "Validate", ErrValueOutOfRange, "invalid leaderboard limit")
)

// ═══════════════════════════════════════════════════════════════════════════
// Classification
// ═══════════════════════════════════════════════════════════════════════════

// Class groups kinds by how a caller should react.
type Class int

const (
	ClassInternal Class = iota
	ClassValidation
	ClassNotFound
	ClassConflict
	ClassUnavailable
)

var classKinds = []struct {
	class Class
	kinds []error
}{
	{ClassValidation, []error{ErrValidation, ErrInvalidInput, ErrEmptyValue, ErrNegativeValue, ErrValueOutOfRange, ErrInvalidFormat}},
	{ClassNotFound, []error{ErrNotFound}},
	{ClassConflict, []error{ErrAlreadyExists}},
	{ClassUnavailable, []error{ErrServiceUnavailable, ErrTimeout, ErrConcurrentModification}},
}

// ClassOf returns the first matching class; unknown errors are internal.
func ClassOf(err error) Class {
	if err == nil {
		return ClassInternal
	}
	for _, ck := range classKinds {
		for _, k := range ck.kinds {
			if errors.Is(err, k) {
				return ck.class
			}
		}
	}
	return ClassInternal
}

func IsValidation(err error) bool { return ClassOf(err) == ClassValidation }
func IsNotFound(err error) bool   { return ClassOf(err) == ClassNotFound }
func IsConflict(err error) bool   { return ClassOf(err) == ClassConflict }

// IsRetryable reports failures that may succeed on a later attempt.
func IsRetryable(err error) bool { return ClassOf(err) == ClassUnavailable }
