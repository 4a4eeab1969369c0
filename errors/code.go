package errors

import "fmt"

// ErrorCode classifies outbound HTTP transport failures. The string form is
// part of the wire contract and must not change.
type ErrorCode int

const (
	CodeNone ErrorCode = iota
	CodeConnectionTimeout
	CodeConnectionRefused
	CodeURIInvalid
	CodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case CodeConnectionTimeout:
		return "connection-timeout"
	case CodeConnectionRefused:
		return "connection-refused"
	case CodeURIInvalid:
		return "http-request-uri-invalid"
	case CodeInternal:
		return "internal-error"
	default:
		return "none"
	}
}

// ParseCode maps a wire code string back to its ErrorCode.
func ParseCode(s string) ErrorCode {
	switch s {
	case "connection-timeout":
		return CodeConnectionTimeout
	case "connection-refused":
		return CodeConnectionRefused
	case "http-request-uri-invalid":
		return CodeURIInvalid
	case "internal-error":
		return CodeInternal
	default:
		return CodeNone
	}
}

// TransportError is an outbound HTTP failure with a stable code.
type TransportError struct {
	Cause   error
	Code    ErrorCode
	Message string
}

func (e *TransportError) Error() string {
	if e.Code == CodeInternal && e.Message != "" {
		return fmt.Sprintf("[transport] internal-error(%s)", e.Message)
	}
	return "[transport] " + e.Code.String()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is matches on code so callers can test errors.Is against a bare code.
func (e *TransportError) Is(target error) bool {
	if t, ok := target.(*TransportError); ok {
		return e.Code == t.Code
	}
	return false
}

// Transport creates a TransportError with the given code.
func Transport(code ErrorCode, cause error) *TransportError {
	return &TransportError{Code: code, Cause: cause}
}

// TransportInternal creates an internal-error(message) transport failure.
func TransportInternal(message string, cause error) *TransportError {
	return &TransportError{Code: CodeInternal, Message: message, Cause: cause}
}
