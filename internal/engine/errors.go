package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/hackrun/internal/ir"
	"github.com/roach88/hackrun/internal/tst"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeParse indicates the test script failed to parse.
	ErrCodeParse ErrorCode = "PARSE_ERROR"

	// ErrCodeFileNotFound indicates a load or compare-to file could not be read.
	ErrCodeFileNotFound ErrorCode = "FILE_NOT_FOUND"

	// ErrCodeRuntimeFault indicates a step failed while executing.
	ErrCodeRuntimeFault ErrorCode = "RUNTIME_FAULT"

	// ErrCodeComparisonMismatch indicates the output log differs from the
	// compare file. It is reported as an outcome, never as a step failure.
	ErrCodeComparisonMismatch ErrorCode = "COMPARISON_MISMATCH"
)

// Error is an engine error with a code, a status message and, when known,
// the script span that caused it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is the human-readable status message.
	Message string

	// Span locates the failing statement. Zero when unknown.
	Span ir.Span

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// ErrNotSteppable is returned by Step when the run is not Ready or Running.
var ErrNotSteppable = errors.New("no runnable test")

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsParseError returns true if err is a script parse error.
// Uses errors.As to handle wrapped errors.
func IsParseError(err error) bool { return hasCode(err, ErrCodeParse) }

// IsFileNotFound returns true if err reports an unreadable file.
func IsFileNotFound(err error) bool { return hasCode(err, ErrCodeFileNotFound) }

// IsRuntimeFault returns true if err reports a failed step.
func IsRuntimeFault(err error) bool { return hasCode(err, ErrCodeRuntimeFault) }

// IsComparisonMismatch returns true if err reports a failed comparison.
func IsComparisonMismatch(err error) bool { return hasCode(err, ErrCodeComparisonMismatch) }

// NewParseError wraps a parser failure. The message is the one shown in the
// status line: "Failed to parse test - <detail>".
func NewParseError(err error) *Error {
	e := &Error{
		Code:    ErrCodeParse,
		Message: fmt.Sprintf("Failed to parse test - %v", err),
		Err:     err,
	}
	var pe *tst.ParseError
	if errors.As(err, &pe) {
		e.Message = fmt.Sprintf("Failed to parse test - %s", pe.Error())
		e.Span = pe.Span()
	}
	return e
}

// NewFileNotFound reports an unreadable file.
func NewFileNotFound(path string, span ir.Span, err error) *Error {
	return &Error{
		Code:    ErrCodeFileNotFound,
		Message: fmt.Sprintf("Cannot find %s", path),
		Span:    span,
		Err:     err,
	}
}

// NewRuntimeFault reports a failed step.
func NewRuntimeFault(span ir.Span, err error) *Error {
	return &Error{
		Code:    ErrCodeRuntimeFault,
		Message: err.Error(),
		Span:    span,
		Err:     err,
	}
}
