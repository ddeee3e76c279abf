package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidation("message", "must not be empty")

	if !IsValidation(err) {
		t.Error("IsValidation = false, want true")
	}
	if IsStoreUnavailable(err) || IsEmbeddingUnavailable(err) {
		t.Error("validation error matched an unrelated category")
	}

	wrapped := fmt.Errorf("handling request: %w", err)
	if !IsValidation(wrapped) {
		t.Error("IsValidation on wrapped error = false, want true")
	}
}

func TestStoreUnavailableError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStoreUnavailable("append record", cause)

	if !IsStoreUnavailable(err) {
		t.Error("IsStoreUnavailable = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
}

func TestEmbeddingUnavailableError(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewEmbeddingUnavailable(cause)

	if !IsEmbeddingUnavailable(err) {
		t.Error("IsEmbeddingUnavailable = false, want true")
	}
	if IsStoreUnavailable(err) {
		t.Error("embedding error matched store category")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
}

func TestErrNotFoundWrapping(t *testing.T) {
	err := fmt.Errorf("session abc: %w", ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is on wrapped ErrNotFound = false, want true")
	}
}
