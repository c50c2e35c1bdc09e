package connector

import (
	"errors"
	"fmt"

	"github.com/hyperjump/mindline/internal/models"
)

// AuthenticationError means the source rejected our credentials. It is fatal for
// that source only and is never retried.
type AuthenticationError struct {
	Source models.SourceType
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Source, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// TransientFetchError marks a failure worth retrying, such as rate limiting or a
// network error.
type TransientFetchError struct {
	Source models.SourceType
	Err    error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("%s: transient fetch failure: %v", e.Source, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// Auth wraps err as an AuthenticationError for source.
func Auth(source models.SourceType, err error) error {
	return &AuthenticationError{Source: source, Err: err}
}

// Transient wraps err as a TransientFetchError for source.
func Transient(source models.SourceType, err error) error {
	return &TransientFetchError{Source: source, Err: err}
}

// IsAuthentication reports whether err is or wraps an AuthenticationError.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsTransient reports whether err is or wraps a TransientFetchError.
func IsTransient(err error) bool {
	var te *TransientFetchError
	return errors.As(err, &te)
}
