package storage

import (
	"context"
	"errors"
	"fmt"
)

// Code classifies a backend error for retry purposes.
type Code string

const (
	// CodeUnavailable marks transient backend outages (connection refused,
	// busy/locked databases, dropped connections). Retryable.
	CodeUnavailable Code = "unavailable"

	// CodeDeadlineExceeded marks backend-side or context timeouts. Retryable.
	CodeDeadlineExceeded Code = "deadline_exceeded"

	// CodeInternal is every other failure. Not retryable.
	CodeInternal Code = "internal"
)

// codedError attaches a classification code to a backend error.
type codedError struct {
	code Code
	err  error
}

func (e *codedError) Error() string { return fmt.Sprintf("%s: %v", e.code, e.err) }
func (e *codedError) Unwrap() error { return e.err }

// Coded wraps err with an explicit classification code.
func Coded(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// CodeOf returns the classification of err. Context deadline errors classify
// as CodeDeadlineExceeded even when a backend driver wrapped them.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeDeadlineExceeded
	}
	return CodeInternal
}
