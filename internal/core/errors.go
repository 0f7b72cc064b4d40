package core

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind classifies an error. Kinds are themselves errors so callers can
// test with errors.Is(err, core.ErrNoData).
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	// ErrNormalization is a single field that could not be normalized.
	// The field is defaulted and the record continues.
	ErrNormalization Kind = "NORMALIZATION_FAILURE"

	// ErrRecordRejected is a record skipped as a whole (unparsable opening date).
	ErrRecordRejected Kind = "RECORD_REJECTED"

	// ErrPersistence is a failed store write for one record.
	ErrPersistence Kind = "PERSISTENCE_ERROR"

	// ErrStoreUnavailable means the store cannot be reached at all.
	ErrStoreUnavailable Kind = "STORE_UNAVAILABLE"

	// ErrStream is a fatal failure reading the record stream.
	ErrStream Kind = "STREAM_FAILURE"

	// ErrEmptyCriteria is a filter request without any recognized key.
	ErrEmptyCriteria Kind = "EMPTY_CRITERIA"

	// ErrInvalidCriteria is a filter or page value that cannot be parsed.
	ErrInvalidCriteria Kind = "INVALID_CRITERIA"

	// ErrNoData is a query or report that matched nothing.
	ErrNoData Kind = "NO_DATA"

	// ErrUnknownReport is a report name that is not registered.
	ErrUnknownReport Kind = "UNKNOWN_REPORT"
)

// Error is a classified error carrying the stack where it was raised.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Stack   []byte
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error's Kind, so errors.Is(err, ErrNoData) works
// on any wrapped *Error.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// StackTrace returns the stack captured when the error was created.
func (e *Error) StackTrace() []byte {
	return e.Stack
}

// NewError creates a classified error. The stack of err is reused when it
// already carries one.
func NewError(kind Kind, message string, err error) *Error {
	var stack []byte
	if err != nil {
		var stackErr *goerrors.Error
		if errors.As(err, &stackErr) {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

// KindOf returns the Kind of err, or "" if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}

// Unavailable wraps a store error that indicates the store cannot be reached.
// Store implementations use it so the pipeline can abort a run.
func Unavailable(message string, err error) *Error {
	return NewError(ErrStoreUnavailable, message, err)
}

// Persistence wraps a failed store write.
func Persistence(message string, err error) *Error {
	return NewError(ErrPersistence, message, err)
}
