// Package errors provides structured, code-carrying errors for the turn engine.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Content errors
	CodeContentParse  Code = "CONTENT_PARSE"
	CodeContentSchema Code = "CONTENT_SCHEMA"
	CodeProvider      Code = "PROVIDER"

	// Phase errors
	CodePrecondition Code = "PRECONDITION"

	// Storage errors
	CodeStore         Code = "STORE"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// Input errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// ExitCode maps domain codes to process exit statuses for CLI entrypoints.
//
// Content failures share one status so scripts can retry the same command.
func (c Code) ExitCode() int {
	switch c {
	case CodeInvalidArgument:
		return 2
	case CodePrecondition:
		return 3
	case CodeContentParse, CodeContentSchema, CodeProvider:
		return 4
	case CodeNotFound, CodeAlreadyExists, CodeStore:
		return 5
	default:
		return 1
	}
}

// Retryable reports whether re-issuing the same command may succeed without
// any state change by the caller.
func (c Code) Retryable() bool {
	switch c {
	case CodeContentParse, CodeContentSchema, CodeProvider:
		return true
	default:
		return false
	}
}
