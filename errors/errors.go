package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// IsCancel reports whether err is a context cancellation or deadline, in
// any wrapping. Supervisors treat these as orderly shutdown.
func IsCancel(err error) bool {
	return stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded)
}

// Phase indicates where in processing the error occurred.
type Phase string

const (
	PhaseStartup   Phase = "startup"   // backend connect, env binding
	PhaseLink      Phase = "link"      // capability linking
	PhaseDispatch  Phase = "dispatch"  // routing inbound events into guests
	PhaseTransport Phase = "transport" // outbound HTTP
	PhaseCache     Phase = "cache"     // outbound response cache
)

// Kind categorizes the error.
type Kind string

const (
	KindConfigMissing      Kind = "config-missing"
	KindLink               Kind = "link"
	KindBackendUnavailable Kind = "backend-unavailable"
	KindRouteMiss          Kind = "route-miss"
	KindTopicMiss          Kind = "topic-miss"
	KindDecode             Kind = "decode"
	KindHandler            Kind = "handler"
	KindTransport          Kind = "transport"
	KindCache              Kind = "cache"
	KindCollision          Kind = "collision"
	KindNotFound           Kind = "not-found"
	KindInternal           Kind = "internal"
)

// Error is the structured error type used throughout the runtime and SDK.
type Error struct {
	Cause      error
	Phase      Phase
	Kind       Kind
	Capability string
	Detail     string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Capability != "" {
		b.WriteString(" in ")
		b.WriteString(e.Capability)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by phase and kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Convenience constructors for common error patterns

// ConfigMissing reports absent required environment variables.
// Every missing name is included so the operator fixes them all at once.
func ConfigMissing(names []string) *Error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return &Error{
		Phase:  PhaseStartup,
		Kind:   KindConfigMissing,
		Detail: "missing required environment variables: " + strings.Join(sorted, ", "),
	}
}

// BackendUnavailable reports a failed initial backend connect.
func BackendUnavailable(capability string, cause error) *Error {
	return &Error{
		Phase:      PhaseStartup,
		Kind:       KindBackendUnavailable,
		Capability: capability,
		Detail:     "connect failed",
		Cause:      cause,
	}
}

// LinkFailed reports that a capability's functions could not be bound.
func LinkFailed(capability string, cause error) *Error {
	return &Error{
		Phase:      PhaseLink,
		Kind:       KindLink,
		Capability: capability,
		Detail:     "add to linker",
		Cause:      cause,
	}
}

// RouteMiss reports that no HTTP route matched.
func RouteMiss(path string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindRouteMiss,
		Detail: fmt.Sprintf("no route for %s", path),
	}
}

// TopicMiss reports that no topic pattern matched.
func TopicMiss(topic string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindTopicMiss,
		Detail: fmt.Sprintf("unhandled topic: %s", topic),
	}
}

// Decode reports that an inbound payload could not be parsed into the
// declared request type.
func Decode(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindDecode,
		Detail: detail,
		Cause:  cause,
	}
}

// Handler wraps a business-logic error returned by a guest handler.
func Handler(cause error) *Error {
	return &Error{
		Phase: PhaseDispatch,
		Kind:  KindHandler,
		Cause: cause,
	}
}

// Collision reports an ambiguous declarative spec (duplicate route or
// derived handler name). Raised at guest construction, never at dispatch.
func Collision(detail string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindCollision,
		Detail: detail,
	}
}

// NotFound reports a missing named entity (config key, identity, bucket).
func NotFound(capability, what, name string) *Error {
	return &Error{
		Phase:      PhaseDispatch,
		Kind:       KindNotFound,
		Capability: capability,
		Detail:     fmt.Sprintf("%s %q not found", what, name),
	}
}

// CacheFailed reports a KV failure during outbound caching. Callers log it
// at debug level and continue without caching; it never reaches the guest.
func CacheFailed(op string, cause error) *Error {
	return &Error{
		Phase:  PhaseCache,
		Kind:   KindCache,
		Detail: op,
		Cause:  cause,
	}
}

// Internal reports an unexpected runtime condition.
func Internal(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInternal,
		Detail: detail,
		Cause:  cause,
	}
}
