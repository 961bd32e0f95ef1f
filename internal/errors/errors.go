// Package errors provides the structured error type used across Quill.
// Every error carries a stable code so callers can branch on taxonomy
// (rate limited vs fatal, skip-file vs abort-run) without string matching.
package errors

import (
	"fmt"
	"strings"
)

// Error is the structured error type for Quill.
type Error struct {
	// Code is the stable error code (see codes.go).
	Code string

	// Message is the human-readable error message.
	Message string

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates whether the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is against sentinel values
// constructed with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates an Error with the given code and message.
func New(code, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// ConfigMissing reports the full set of missing environment variables so a
// user can fix them all in one pass.
func ConfigMissing(keys []string) *Error {
	return New(ErrCodeConfigMissing,
		fmt.Sprintf("missing environment variables: %s", strings.Join(keys, ", ")), nil)
}

// FileUnavailable reports a source file that vanished or became unreadable
// mid-scan. Callers skip the file rather than abort the run.
func FileUnavailable(path string, cause error) *Error {
	return New(ErrCodeFileUnavailable,
		fmt.Sprintf("source file unavailable: %s", path), cause).
		WithDetail("path", path)
}

// RateLimited reports a rate-limit rejection from the embedding backend.
func RateLimited(cause error) *Error {
	return New(ErrCodeRateLimited, "embedding backend rate limited", cause)
}

// CountMismatch reports an embedding count disagreement.
func CountMismatch(want, got int) *Error {
	return New(ErrCodeCountMismatch,
		fmt.Sprintf("embedding count mismatch: %d texts, %d vectors", want, got), nil)
}

// SchemaMismatch reports index fields required for ingestion but absent from
// the index schema.
func SchemaMismatch(index string, missing []string) *Error {
	return New(ErrCodeSchemaMismatch,
		fmt.Sprintf("index %q is missing fields: %s", index, strings.Join(missing, ", ")), nil).
		WithDetail("index", index)
}

// PartialUpload reports rejected documents within an upload batch.
func PartialUpload(failed int, samples []string) *Error {
	return New(ErrCodePartialUpload,
		fmt.Sprintf("%d documents rejected in batch (samples: %s)", failed, strings.Join(samples, "; ")), nil)
}

// Backend wraps a non-retryable remote backend failure.
func Backend(message string, cause error) *Error {
	return New(ErrCodeBackend, message, cause)
}

// IsRateLimited reports whether err (or anything it wraps) is a rate-limit error.
func IsRateLimited(err error) bool {
	return HasCode(err, ErrCodeRateLimited)
}

// HasCode reports whether err or any error it wraps carries the given code.
func HasCode(err error, code string) bool {
	for err != nil {
		if qe, ok := err.(*Error); ok && qe.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// GetCode extracts the code from an Error, or empty string.
func GetCode(err error) string {
	if qe, ok := err.(*Error); ok {
		return qe.Code
	}
	return ""
}
