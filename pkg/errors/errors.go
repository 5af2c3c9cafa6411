// Package errors provides structured error types for the PCB Forge toolchain.
//
// This package defines error kinds and types that enable:
//   - Consistent error handling across CLI and pipeline
//   - Machine-readable error kinds for programmatic handling
//   - User-friendly error messages that locate the offending input
//   - Error wrapping with context preservation
//
// # Error Kinds
//
// Kinds classify an error by the layer that raised it:
//   - PARSE: artwork file interpretation failures
//   - GEOMETRY: contour construction failures
//   - PLANNING: toolpath planning failures
//   - BOUNDS: machine envelope violations
//   - CONFIG / CACHE / INTERNAL / UNSUPPORTED: outer layers
//
// # Usage
//
//	err := errors.NewParse("top.gbr", 42, 0, "unterminated region")
//	if errors.IsKind(err, errors.KindParse) {
//	    // Handle parse error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.KindCache, origErr, "failed to store %s", key)
package errors

import (
	"errors"
	"fmt"
)

// Kind represents a machine-readable error classification.
type Kind string

// Error kinds for different failure categories.
const (
	// Input interpretation failures
	KindParse Kind = "PARSE"

	// Contour and polygon construction failures
	KindGeometry Kind = "GEOMETRY"

	// Toolpath planning failures
	KindPlanning Kind = "PLANNING"

	// Machine envelope violations
	KindBounds Kind = "BOUNDS"

	// Configuration errors
	KindConfig Kind = "CONFIG"

	// Cache backend errors
	KindCache Kind = "CACHE"

	// Recognized but unsupported input constructs
	KindUnsupported Kind = "UNSUPPORTED"

	// Unexpected internal errors
	KindInternal Kind = "INTERNAL"
)

// Error is a structured error with a kind, location context, and optional cause.
// Context fields carry zero values when they do not apply.
type Error struct {
	Kind    Kind   // Machine-readable error kind
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)

	Source  string  // Input file or logical source name
	Line    int     // 1-based line number within Source
	Column  int     // 1-based column within the line
	Stage   string  // Output stage being planned or emitted
	Contour string  // Contour identity for geometry failures
	X, Y    float64 // Offending coordinate for bounds failures
}

// Error implements the error interface. Location context is folded into
// the message so a bare log line is enough to find the offending input.
func (e *Error) Error() string {
	msg := e.Message
	if e.Source != "" {
		loc := e.Source
		if e.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, e.Line)
			if e.Column > 0 {
				loc = fmt.Sprintf("%s:%d", loc, e.Column)
			}
		}
		msg = loc + ": " + msg
	}
	if e.Stage != "" {
		msg = fmt.Sprintf("stage %s: %s", e.Stage, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// NewParse creates a parse error located at source:line:column.
// Pass zero for an unknown line or column.
func NewParse(source string, line, column int, format string, args ...any) *Error {
	return &Error{
		Kind:    KindParse,
		Message: fmt.Sprintf(format, args...),
		Source:  source,
		Line:    line,
		Column:  column,
	}
}

// NewGeometry creates a geometry error for the named contour.
func NewGeometry(contour string, format string, args ...any) *Error {
	return &Error{
		Kind:    KindGeometry,
		Message: fmt.Sprintf(format, args...),
		Contour: contour,
	}
}

// NewPlanning creates a planning error for the named output stage.
func NewPlanning(stage string, format string, args ...any) *Error {
	return &Error{
		Kind:    KindPlanning,
		Message: fmt.Sprintf(format, args...),
		Stage:   stage,
	}
}

// NewBounds creates a bounds error for a coordinate outside the machine
// work area. The coordinate is recorded in machine millimeters.
func NewBounds(stage string, x, y float64, format string, args ...any) *Error {
	return &Error{
		Kind:    KindBounds,
		Message: fmt.Sprintf("%s at (%.4f, %.4f)", fmt.Sprintf(format, args...), x, y),
		Stage:   stage,
		X:       x,
		Y:       y,
	}
}

// IsKind reports whether err has the given error kind.
// It unwraps the error chain looking for an *Error with a matching kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the error kind from an error, if available.
// Returns empty string if the error is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message with location but without the
// kind prefix. For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		msg := e.Message
		if e.Source != "" {
			loc := e.Source
			if e.Line > 0 {
				loc = fmt.Sprintf("%s:%d", loc, e.Line)
			}
			msg = loc + ": " + msg
		}
		return msg
	}
	return err.Error()
}
