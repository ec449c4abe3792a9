package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBatchLengthMismatch means the provider returned a different number of
	// vectors than inputs were sent. Nothing from the batch is applied.
	ErrBatchLengthMismatch = errors.New("embedding batch length mismatch")

	ErrEmptyDocument = errors.New("document is empty")
)

type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "missing API key: " + e.Reason
}

// ProviderError reports a failed or malformed embedding response.
type ProviderError struct {
	StatusCode int
	Body       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding request failed: %d %s", e.StatusCode, e.Body)
	}
	return "embedding provider: " + e.Message
}

type CorruptCacheError struct {
	Source string
	Reason string
	Err    error
}

func (e *CorruptCacheError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Source, e.Reason)
}

func (e *CorruptCacheError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return "note not found: " + e.Path
}

type RequiredFieldError struct {
	Field string
}

func (e *RequiredFieldError) Error() string {
	return e.Field + " is required"
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
