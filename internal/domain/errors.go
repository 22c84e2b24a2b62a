package domain

import (
	"errors"
	"fmt"
)

var (
	// Business rejections
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInvalidPeriodBoundary = errors.New("opening balance does not match prior closing balance")

	// Infrastructure
	ErrStorageFailure = errors.New("storage failure")
	ErrStaleSnapshot  = errors.New("stale snapshot detected")

	// Request shape errors
	ErrInvalidQuantity       = errors.New("quantity must be a positive integer")
	ErrInvalidKind           = errors.New("unknown transaction kind")
	ErrSameBase              = errors.New("cannot transfer to the same base")
	ErrMissingPersonnel      = errors.New("assignment requires a personnel reference")
	ErrUnexpectedPersonnel   = errors.New("personnel reference is only allowed on assignments")
	ErrUnexpectedNotes       = errors.New("notes are only allowed on expenditures")
	ErrInvalidOpeningBalance = errors.New("opening balance cannot be negative")
	ErrInvalidCursor         = errors.New("invalid history cursor")

	// Idempotency
	ErrRequestConflict = errors.New("request id was already used for a different movement")
)

// StorageError is an infrastructure fault raised by a log store.
// Transient failures may be retried by the coordinator.
type StorageError struct {
	Op        string
	Account   AccountKey
	Kind      Kind
	Transient bool
	Err       error
}

func (e *StorageError) Error() string {
	if e.Account.IsZero() {
		return fmt.Sprintf("%s: %s: %v", ErrStorageFailure, e.Op, e.Err)
	}

	return fmt.Sprintf("%s: %s %s %s: %v", ErrStorageFailure, e.Op, e.Kind, e.Account, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches ErrStorageFailure so callers can tell infrastructure faults
// from business rejections with errors.Is.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// NewStorageError wraps err as a StorageError. A nil err returns nil.
func NewStorageError(op string, transient bool, err error) error {
	if err == nil {
		return nil
	}

	var se *StorageError
	if errors.As(err, &se) {
		return err
	}

	return &StorageError{Op: op, Transient: transient, Err: err}
}

// IsTransientStorageError reports whether err is a retryable storage fault.
func IsTransientStorageError(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Transient
	}

	return false
}

// WithContext returns a copy of a StorageError annotated with the account
// key and transaction kind being written. Other errors are returned as is.
func WithContext(err error, key AccountKey, kind Kind) error {
	var se *StorageError
	if !errors.As(err, &se) {
		return err
	}

	annotated := *se
	annotated.Account = key
	annotated.Kind = kind

	return &annotated
}
