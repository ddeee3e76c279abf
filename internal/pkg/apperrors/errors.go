package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups for sessions, records or owners that do not exist
// (or are soft-deleted, which is the same thing to callers). Never retried.
var ErrNotFound = errors.New("not found")

// ValidationError rejects malformed input synchronously: empty message,
// empty upload file name, bad ids.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StoreUnavailableError wraps network/storage failures during fetch or write.
// Reads may be retried by the caller with backoff; writes must be explicitly
// resubmitted (never silently retried, to avoid duplicate appends).
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

func NewStoreUnavailable(op string, err error) error {
	return &StoreUnavailableError{Op: op, Err: err}
}

// EmbeddingUnavailableError reports a failed embedding generation. It never
// blocks persistence: the record is stored without a vector and excluded from
// similarity search until backfilled.
type EmbeddingUnavailableError struct {
	Err error
}

func (e *EmbeddingUnavailableError) Error() string {
	return fmt.Sprintf("embedding provider unavailable: %v", e.Err)
}

func (e *EmbeddingUnavailableError) Unwrap() error {
	return e.Err
}

func NewEmbeddingUnavailable(err error) error {
	return &EmbeddingUnavailableError{Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStoreUnavailable reports whether err is (or wraps) a StoreUnavailableError.
func IsStoreUnavailable(err error) bool {
	var se *StoreUnavailableError
	return errors.As(err, &se)
}

// IsEmbeddingUnavailable reports whether err is (or wraps) an EmbeddingUnavailableError.
func IsEmbeddingUnavailable(err error) bool {
	var ee *EmbeddingUnavailableError
	return errors.As(err, &ee)
}
