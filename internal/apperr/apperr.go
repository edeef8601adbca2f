package apperr

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind classifies engine failures.
type Kind string

const (
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindDimensionMismatch   Kind = "DIMENSION_MISMATCH"
	KindEmptyIndex          Kind = "EMPTY_INDEX"
	KindMalformedRecord     Kind = "MALFORMED_RECORD"
)

// Sentinels for errors.Is checks. Any *Error with the same Kind matches.
var (
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrDimensionMismatch   = &Error{Kind: KindDimensionMismatch}
	ErrEmptyIndex          = &Error{Kind: KindEmptyIndex}
	ErrMalformedRecord     = &Error{Kind: KindMalformedRecord}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
	Stack   []byte
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string, err error) *Error {
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

func UpstreamUnavailable(message string, err error) *Error {
	return New(KindUpstreamUnavailable, message, err)
}

func DimensionMismatch(format string, args ...any) *Error {
	return New(KindDimensionMismatch, fmt.Sprintf(format, args...), nil)
}

func EmptyIndex(message string) *Error {
	return New(KindEmptyIndex, message, nil)
}

func MalformedRecord(message string) *Error {
	return New(KindMalformedRecord, message, nil)
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
