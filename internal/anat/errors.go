package anat

import (
	"fmt"
	"strings"
)

// ErrorClass buckets assembly failures for metrics and logs. Every class is
// fatal at assembly time; nothing here is retried or downgraded.
type ErrorClass string

const (
	// ErrMissingInput means a required input file was not found on disk.
	ErrMissingInput ErrorClass = "missing_input"
	// ErrInconsistency means a branch's precondition flag contradicts an
	// earlier branch's output, which indicates a caller or ordering bug.
	ErrInconsistency ErrorClass = "internal_inconsistency"
	// ErrUnsupportedConfig means the requested products cannot be produced
	// from the available inputs.
	ErrUnsupportedConfig ErrorClass = "unsupported_configuration"
)

// AssemblyError is a fatal graph-construction failure.
type AssemblyError struct {
	Class        ErrorClass
	Message      string
	MissingPaths []string
}

// Error implements the error interface.
func (e *AssemblyError) Error() string {
	if len(e.MissingPaths) > 0 {
		return fmt.Sprintf("%s: %s (missing: %s)", e.Class, e.Message, strings.Join(e.MissingPaths, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func missingInputError(msg string, missing []string) *AssemblyError {
	return &AssemblyError{Class: ErrMissingInput, Message: msg, MissingPaths: missing}
}

func inconsistencyError(format string, args ...interface{}) *AssemblyError {
	return &AssemblyError{Class: ErrInconsistency, Message: fmt.Sprintf(format, args...)}
}

func unsupportedConfigError(format string, args ...interface{}) *AssemblyError {
	return &AssemblyError{Class: ErrUnsupportedConfig, Message: fmt.Sprintf(format, args...)}
}
