// SPDX-License-Identifier: MIT

package extractor

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks at the HTTP boundary. Provider
// failures are classified into this closed taxonomy exactly once, at the
// adapter, and never re-classified downstream.
var (
	ErrUnsupportedURL = errors.New("extractor: unsupported url")
	ErrRestricted     = errors.New("extractor: content private or restricted")
	ErrAuthRequired   = errors.New("extractor: authentication required")
	ErrDRMProtected   = errors.New("extractor: drm protected content")
	ErrExtraction     = errors.New("extractor: extraction failed")
	ErrNoFormats      = errors.New("extractor: no usable formats")
	ErrMergeFailed    = errors.New("extractor: merge delivery failed")
	ErrNetwork        = errors.New("extractor: network failure")
	ErrTimeout        = errors.New("extractor: request timed out")
)

// Error wraps a sentinel with operation context. Detail is a human-readable
// string safe to surface to callers; raw provider output stays in Err.
type Error struct {
	Sentinel  error
	Operation string
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("extractor: %s: %v", e.Operation, e.Sentinel)
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// NewError constructs a taxonomy error for the given operation.
func NewError(sentinel error, operation, detail string, err error) *Error {
	return &Error{Sentinel: sentinel, Operation: operation, Detail: detail, Err: err}
}

// Detail returns the caller-safe detail string for err, or a generic fallback.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	return "an unexpected error occurred"
}
