package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the core. Every error returned
// across a component boundary maps to exactly one kind.
type ErrorKind string

const (
	KindUnknown            ErrorKind = "UNKNOWN"
	KindUnauthenticated    ErrorKind = "UNAUTHENTICATED"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindInvalidState       ErrorKind = "INVALID_STATE"
	KindIllegalTransition  ErrorKind = "ILLEGAL_TRANSITION"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindDuplicateID        ErrorKind = "DUPLICATE_ID"
	KindInvalidSample      ErrorKind = "INVALID_SAMPLE"
	KindInvalidInput       ErrorKind = "INVALID_INPUT"
	KindRateLimited        ErrorKind = "RATE_LIMITED"
	KindAlreadyCorrected   ErrorKind = "ALREADY_CORRECTED"
	KindStorage            ErrorKind = "STORAGE_ERROR"
	KindIntegrityViolation ErrorKind = "INTEGRITY_VIOLATION"
)

// KindedError is implemented by every typed domain error
type KindedError interface {
	error
	Kind() ErrorKind
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var kinded KindedError
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return KindUnknown
}

// IsRetryable reports whether err may be retried with the same request token.
// Only durable-store faults qualify.
func IsRetryable(err error) bool {
	return KindOf(err) == KindStorage
}

// StorageError wraps a fault raised by a durable store
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err unless it already carries a domain classification
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var kinded KindedError
	if errors.As(err, &kinded) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Kind() ErrorKind { return KindStorage }

// ErrInvalidInput reports malformed request attributes
type ErrInvalidInput struct {
	Field  string
	Reason string
}

func (e ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e ErrInvalidInput) Kind() ErrorKind { return KindInvalidInput }
