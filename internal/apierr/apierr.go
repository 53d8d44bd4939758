// Package apierr defines the failure taxonomy shared by the registry and the
// invocation runtime. Every failure that crosses an invocation boundary is an
// *Error with exactly one Kind.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure
type Kind string

const (
	KindMissingPathParameter   Kind = "missing_path_parameter"
	KindUnresolvedPathTemplate Kind = "unresolved_path_template"
	KindInvalidInput           Kind = "invalid_input"
	KindOperationNotFound      Kind = "operation_not_found"
	KindAuthentication         Kind = "authentication_failure"
	KindAuthorization          Kind = "authorization_failure"
	KindResourceNotFound       Kind = "resource_not_found"
	KindInvalidRequest         Kind = "invalid_request"
	KindRemoteUnavailable      Kind = "remote_unavailable"
	KindUnclassified           Kind = "unclassified_transport_error"
)

// Sentinels for errors.Is; an *Error matches the sentinel of its Kind.
var (
	ErrMissingPathParameter   = &Error{Kind: KindMissingPathParameter}
	ErrUnresolvedPathTemplate = &Error{Kind: KindUnresolvedPathTemplate}
	ErrInvalidInput           = &Error{Kind: KindInvalidInput}
	ErrOperationNotFound      = &Error{Kind: KindOperationNotFound}
	ErrAuthentication         = &Error{Kind: KindAuthentication}
	ErrAuthorization          = &Error{Kind: KindAuthorization}
	ErrResourceNotFound       = &Error{Kind: KindResourceNotFound}
	ErrInvalidRequest         = &Error{Kind: KindInvalidRequest}
	ErrRemoteUnavailable      = &Error{Kind: KindRemoteUnavailable}
	ErrUnclassified           = &Error{Kind: KindUnclassified}
)

// Error is a classified failure
type Error struct {
	Kind      Kind
	Operation string
	Status    int
	Message   string

	// Missing lists absent path parameters for KindMissingPathParameter and
	// unresolved placeholders for KindUnresolvedPathTemplate.
	Missing []string

	// Detail is the decoded remote response body, if any
	Detail any

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Operation != "" {
		b.WriteString(" [" + e.Operation + "]")
	}
	if e.Status > 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether the caller may retry the same request with backoff
func (e *Error) Retryable() bool {
	return e.Kind == KindRemoteUnavailable
}

// NeedsReauth reports whether credentials should be refreshed before a retry
func (e *Error) NeedsReauth() bool {
	return e.Kind == KindAuthentication
}

// KindOf returns the Kind of err, or "" if err is not classified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MissingPathParameters reports required path parameters absent from input
func MissingPathParameters(operation string, names []string) *Error {
	return &Error{
		Kind:      KindMissingPathParameter,
		Operation: operation,
		Message:   "missing required path parameters: " + strings.Join(names, ", "),
		Missing:   names,
	}
}

// UnresolvedPathTemplate reports placeholders left after substitution
func UnresolvedPathTemplate(operation, path string, remaining []string) *Error {
	return &Error{
		Kind:      KindUnresolvedPathTemplate,
		Operation: operation,
		Message:   fmt.Sprintf("unresolved placeholders in %s: %s", path, strings.Join(remaining, ", ")),
		Missing:   remaining,
	}
}

// InvalidInput reports an input value rejected by the operation's input schema
func InvalidInput(operation, message string, err error) *Error {
	return &Error{
		Kind:      KindInvalidInput,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// OperationNotFound reports a registry lookup miss, before any dispatch
func OperationNotFound(name string) *Error {
	return &Error{
		Kind:      KindOperationNotFound,
		Operation: name,
		Message:   "operation not found in registry",
	}
}

// Transport wraps a transport-level failure
func Transport(operation string, err error) *Error {
	return &Error{
		Kind:      KindUnclassified,
		Operation: operation,
		Message:   "request failed",
		Err:       err,
	}
}

// FromStatus classifies a non-2xx response. body is the raw response payload
// and detail its decoded form.
func FromStatus(operation string, status int, body []byte, detail any) *Error {
	e := &Error{
		Operation: operation,
		Status:    status,
		Detail:    detail,
	}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuthentication
		e.Message = "authentication failed, refresh credentials before retrying"
	case status == http.StatusForbidden:
		e.Kind = KindAuthorization
		e.Message = "access denied for this resource"
	case status == http.StatusNotFound:
		e.Kind = KindResourceNotFound
		e.Message = "resource not found, verify the parameters"
	case status == http.StatusBadRequest:
		e.Kind = KindInvalidRequest
		e.Message = "invalid request"
	case status >= 500:
		e.Kind = KindRemoteUnavailable
		e.Message = "remote service unavailable, retry with backoff"
	default:
		e.Kind = KindUnclassified
		e.Message = "unexpected response status"
	}

	if msg := RemoteMessage(body); msg != "" {
		e.Message += ": " + msg
	}

	return e
}

// maxRemoteMessage bounds the raw body excerpt carried in a message
const maxRemoteMessage = 200

// RemoteMessage extracts a human readable message from an error payload.
// JSON bodies are searched for the usual message keys; other bodies are
// returned trimmed and truncated.
func RemoteMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}

	var payload map[string]any
	if json.Unmarshal(body, &payload) == nil {
		for _, key := range []string{"message", "error_description", "detail", "error", "title"} {
			switch v := payload[key].(type) {
			case string:
				if v != "" {
					return v
				}
			case map[string]any:
				if msg, ok := v["message"].(string); ok && msg != "" {
					return msg
				}
			}
		}
	}

	if len(text) > maxRemoteMessage {
		text = text[:maxRemoteMessage-3] + "..."
	}
	return text
}
