package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all navigation failure modes
type ErrorCode string

const (
	// ServerUnavailable indicates no analysis server is configured or
	// installed for the file's extension
	ServerUnavailable ErrorCode = "SERVER_UNAVAILABLE"
	// SpawnFailure indicates the server subprocess could not be started
	SpawnFailure ErrorCode = "SPAWN_FAILURE"
	// HandshakeTimeout indicates the server did not complete the
	// initialize handshake in time
	HandshakeTimeout ErrorCode = "HANDSHAKE_TIMEOUT"
	// RequestTimeout indicates a protocol request did not complete in time
	RequestTimeout ErrorCode = "REQUEST_TIMEOUT"
	// SymbolUnresolved indicates the symbol could not be located within
	// tolerance, or the server returned no matches
	SymbolUnresolved ErrorCode = "SYMBOL_UNRESOLVED"
	// ConfigInvalid indicates a malformed configuration entry
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// DocumentNotOpen indicates a protocol request referenced a document
	// that was never opened (caller-contract violation)
	DocumentNotOpen ErrorCode = "DOCUMENT_NOT_OPEN"
	// OutputTooLarge indicates the result set exceeds response limits
	// and must be paged through
	OutputTooLarge ErrorCode = "OUTPUT_TOO_LARGE"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// Hint is an actionable suggestion attached to an error
type Hint struct {
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

// NavError represents a navigation error with a stable code and hints
type NavError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Hints   []Hint      `json:"hints,omitempty"`
	cause   error
}

// New creates a new NavError with the default hints for its code
func New(code ErrorCode, message string, cause error) *NavError {
	return &NavError{
		Code:    code,
		Message: message,
		Hints:   DefaultHints(code),
		cause:   cause,
	}
}

// Error implements the error interface
func (e *NavError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *NavError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *NavError) WithDetails(details interface{}) *NavError {
	e.Details = details
	return e
}

// CodeOf extracts the ErrorCode from err, or InternalError if err is not
// a NavError.
func CodeOf(err error) ErrorCode {
	var navErr *NavError
	if stderrors.As(err, &navErr) {
		return navErr.Code
	}
	return InternalError
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ErrorCode) bool {
	var navErr *NavError
	if stderrors.As(err, &navErr) {
		return navErr.Code == code
	}
	return false
}

// Recoverable reports whether the error kind is handled by degrading to the
// lexical fallback rather than surfacing to the caller.
func Recoverable(code ErrorCode) bool {
	switch code {
	case ServerUnavailable, SpawnFailure, HandshakeTimeout, RequestTimeout, SymbolUnresolved:
		return true
	}
	return false
}

// defaultHints maps error codes to suggested next steps
var defaultHints = map[ErrorCode][]Hint{
	ServerUnavailable: {
		{
			Action:      "codenav servers",
			Description: "List configured analysis servers and their install status",
		},
	},
	SymbolUnresolved: {
		{
			Action:      "verify-symbol",
			Description: "Verify the exact symbol name and line number in the target file",
		},
	},
	OutputTooLarge: {
		{
			Action:      "page-through",
			Description: "Request subsequent pages with the page parameter",
		},
	},
	DocumentNotOpen: {
		{
			Action:      "open-document",
			Description: "Open the document before issuing protocol requests against it",
		},
	},
}

// DefaultHints returns suggested hints for an error code
func DefaultHints(code ErrorCode) []Hint {
	return defaultHints[code]
}
