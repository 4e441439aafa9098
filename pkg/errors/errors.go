// Package errors provides structured error handling for locusflow.
// It implements errors with codes, context, and stack traces.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Error codes for programmatic handling
type Code string

const (
	// Context usage errors (1xx)
	CodeUnknownField        Code = "E101"
	CodeInvalidPropertyType Code = "E102"
	CodeUnknownStream       Code = "E103"

	// Filter execution errors (2xx)
	CodeFilterExecution Code = "E201"
	CodeFilterTimeout   Code = "E202"

	// Source errors (3xx)
	CodeLocusNotFound       Code = "E301"
	CodeInsufficientHistory Code = "E302"
	CodeSourceQuery         Code = "E303"

	// Commit errors (4xx)
	CodeCommitFailed   Code = "E401"
	CodeDeliveryFailed Code = "E402"
	CodePropertyStore  Code = "E403"
	CodeArchiveFailed  Code = "E404"

	// System errors (5xx)
	CodeConfig          Code = "E501"
	CodeContextCanceled Code = "E502"

	// Unknown
	CodeUnknown Code = "E999"
)

// Error is the base error type for all locusflow errors.
type Error struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, v))
			first = false
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new Error.
func New(code Code, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *Error) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// UnknownField creates an error for a projection naming a field the locus
// has never carried.
func UnknownField(field string, available []string) *Error {
	return New(CodeUnknownField, "unknown field in projection").
		WithContext("field", field).
		WithContext("available", available)
}

// InvalidPropertyType creates an error for a non-scalar property value.
func InvalidPropertyType(name string, value interface{}) *Error {
	return New(CodeInvalidPropertyType, "property value must be int, float, or string").
		WithContext("property", name).
		WithContext("type", fmt.Sprintf("%T", value))
}

// UnknownStream creates an error for a stream name outside the registry.
func UnknownStream(stream string, known []string) *Error {
	return New(CodeUnknownStream, "stream not in registry").
		WithContext("stream", stream).
		WithContext("known", known)
}

// FilterExecution wraps a fault raised by user filter code.
func FilterExecution(filterName string, locusID int64, err error) *Error {
	return Wrap(err, CodeFilterExecution, "filter execution failed").
		WithContext("filter", filterName).
		WithContext("locus_id", locusID)
}

// FilterTimeout creates an error for an invocation exceeding its budget.
func FilterTimeout(filterName string, locusID int64, budget string) *Error {
	return New(CodeFilterTimeout, "filter exceeded time budget").
		WithContext("filter", filterName).
		WithContext("locus_id", locusID).
		WithContext("budget", budget)
}

// LocusNotFound creates an error for an unknown locus identifier.
func LocusNotFound(locusID int64) *Error {
	return New(CodeLocusNotFound, "locus not found").
		WithContext("locus_id", locusID)
}

// InsufficientHistory creates an error for a locus below the two-measurement
// execution precondition.
func InsufficientHistory(locusID int64, count int) *Error {
	return New(CodeInsufficientHistory, "locus has fewer than two measurements").
		WithContext("locus_id", locusID).
		WithContext("measurements", count)
}

// ContextCanceled creates a cancellation error.
func ContextCanceled(operation string) *Error {
	return New(CodeContextCanceled, "operation canceled").
		WithContext("operation", operation)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
