package operation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a failure. The kind decides how the failure
// propagates: NotFound and Validation are returned to the caller in
// Result.Errors, Unauthorized additionally clears the session, and
// UnknownOperation signals a caller/registry mismatch.
type ErrorKind int

const (
	// KindUnknown is an uncategorized failure.
	KindUnknown ErrorKind = iota
	// KindNotFound means a referenced id is absent.
	KindNotFound
	// KindValidation means a required field is missing or invalid.
	KindValidation
	// KindUnauthorized means the session was rejected.
	KindUnauthorized
	// KindNetwork means the backend was unreachable or timed out.
	KindNetwork
	// KindUnknownOperation means the active backend does not serve the name.
	KindUnknownOperation
)

var errorKindNames = map[ErrorKind]string{
	KindUnknown:          "Unknown",
	KindNotFound:         "NotFound",
	KindValidation:       "Validation",
	KindUnauthorized:     "Unauthorized",
	KindNetwork:          "Network",
	KindUnknownOperation: "UnknownOperation",
}

// GraphQL extension codes used on the wire.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeBadUserInput     = "BAD_USER_INPUT"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeForbidden        = "FORBIDDEN"
	CodeNetwork          = "NETWORK_ERROR"
	CodeUnknownOperation = "UNKNOWN_OPERATION"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Code returns the GraphQL extensions.code for the kind.
func (k ErrorKind) Code() string {
	switch k {
	case KindNotFound:
		return CodeNotFound
	case KindValidation:
		return CodeBadUserInput
	case KindUnauthorized:
		return CodeUnauthenticated
	case KindNetwork:
		return CodeNetwork
	case KindUnknownOperation:
		return CodeUnknownOperation
	default:
		return CodeInternal
	}
}

// KindFromCode maps a GraphQL extensions.code back to an ErrorKind.
func KindFromCode(code string) ErrorKind {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case CodeNotFound:
		return KindNotFound
	case CodeBadUserInput, "VALIDATION", "GRAPHQL_VALIDATION_FAILED":
		return KindValidation
	case CodeUnauthenticated, CodeForbidden:
		return KindUnauthorized
	case CodeNetwork:
		return KindNetwork
	case CodeUnknownOperation:
		return KindUnknownOperation
	default:
		return KindUnknown
	}
}

// MarshalText renders the kind name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name; unknown names become KindUnknown.
func (k *ErrorKind) UnmarshalText(b []byte) error {
	for kind, name := range errorKindNames {
		if strings.EqualFold(name, string(b)) {
			*k = kind
			return nil
		}
	}
	*k = KindUnknown
	return nil
}

// Error is a structured, human-readable failure. It is both the element of
// Result.Errors and a Go error.
type Error struct {
	Message    string         `json:"message"`
	Kind       ErrorKind      `json:"kind"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error with the same Kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

// Field returns the offending field recorded by Validation, if any.
func (e *Error) Field() string {
	if e.Extensions == nil {
		return ""
	}
	s, _ := e.Extensions["field"].(string)
	return s
}

// NotFound reports a missing record.
func NotFound(collection, id string) *Error {
	msg := fmt.Sprintf("%s %q not found", collection, id)
	if id == "" {
		msg = fmt.Sprintf("%s not found", collection)
	}
	return &Error{Message: msg, Kind: KindNotFound}
}

// Validation reports a missing or invalid field.
func Validation(field, message string) *Error {
	e := &Error{Message: message, Kind: KindValidation}
	if field != "" {
		e.Message = fmt.Sprintf("invalid %s: %s", field, message)
		e.Extensions = map[string]any{"field": field}
	}
	return e
}

// Unauthorized reports a rejected session.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "session is not authorized"
	}
	return &Error{Message: message, Kind: KindUnauthorized}
}

// Network reports an unreachable or timed-out backend.
func Network(message string) *Error {
	return &Error{Message: message, Kind: KindNetwork}
}

// UnknownOperation reports a name the active backend does not serve.
// The attempted name is always part of the message.
func UnknownOperation(name string) *Error {
	return &Error{
		Message:    fmt.Sprintf("unknown operation %q", name),
		Kind:       KindUnknownOperation,
		Extensions: map[string]any{"operation": name},
	}
}

// Unknown wraps an uncategorized failure.
func Unknown(message string) *Error {
	return &Error{Message: message, Kind: KindUnknown}
}

// Classifier maps domain errors of a lower layer to an *Error.
// Returning nil means "not mine".
type Classifier func(err error) *Error

// FromError converts any error to an *Error. Existing *Error values pass
// through; context and net errors become Network; the classifiers are tried
// in order; everything else is Unknown.
func FromError(err error, classifiers ...Classifier) *Error {
	if err == nil {
		return nil
	}
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr
	}
	for _, c := range classifiers {
		if e := c(err); e != nil {
			return e
		}
	}
	if errors.Is(err, context.Canceled) {
		return Network("request cancelled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Network("request timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Network(netErr.Error())
	}
	return Unknown(err.Error())
}

// KindOf returns the ErrorKind of err, KindUnknown for foreign errors.
func KindOf(err error) ErrorKind {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return KindUnknown
}
