// Package apperr defines the error kinds surfaced to API clients and how each
// maps onto an HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error is an application error. Message is safe to show to clients; Err
// holds the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = strings.Join(e.Fields, "; ")
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed input. Each entry in fields describes one
// violated constraint.
func Validation(fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// NotFound reports a missing resource.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict reports a request the current state (or a store constraint) rejects.
func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// Timeout reports work that did not finish before its deadline.
func Timeout(message string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: message, Err: err}
}

// Internal wraps a store, process or IO failure behind a short client message.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Collector accumulates validation failures so every violated field is
// reported at once instead of only the first.
type Collector struct {
	fields []string
}

// Addf records one violation.
func (c *Collector) Addf(format string, args ...any) {
	c.fields = append(c.fields, fmt.Sprintf(format, args...))
}

// Err returns a validation error when anything was recorded, nil otherwise.
func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return Validation(c.fields...)
}
