// Package scerr defines the Scribe error taxonomy. Every user-facing tool
// failure is wrapped in a *Error carrying a Kind discriminator so the tool
// router can render structured error/suggestion fields without re-parsing
// message strings.
package scerr

import "fmt"

// Kind discriminates the error taxonomy.
type Kind string

const (
	KindParameterValidation Kind = "parameter_validation"
	KindSecurityViolation   Kind = "security_violation"
	KindPermissionDenied    Kind = "permission_denied"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindMetadataMissing     Kind = "metadata_missing"
	KindLockTimeout         Kind = "lock_timeout"
	KindVerificationFailed  Kind = "verification_failed"
	KindSessionExpired      Kind = "session_expired"
	KindInternal            Kind = "internal"
)

// Error is the Scribe structured error. It wraps an optional underlying
// cause and carries a caller-facing suggestion plus arbitrary structured
// fields (e.g. missing metadata keys, conflicting versions).
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	Fields     map[string]any
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause into an *Error of the given kind.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithSuggestion attaches a caller-facing suggestion and returns e for chaining.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithField attaches a structured field and returns e for chaining.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	e.Fields[key] = value
	return e
}

// Is allows errors.Is(err, scerr.New(kind, "")) to match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, otherwise
// KindInternal.
func KindOf(err error) Kind {
	var se *Error
	if As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// As is a thin re-export of errors.As specialized for *Error, kept here so
// callers don't need a second import for the common case.
func As(err error, target **Error) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
