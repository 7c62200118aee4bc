// Package apierr defines the closed error-kind taxonomy that the HTTP layer
// translates into wire responses. Every component that can fail produces one
// of these kinds rather than an ad hoc error.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the taxonomy values below. It is the only thing the HTTP
// layer inspects when deciding how to respond.
type Kind string

const (
	InvalidInput    Kind = "InvalidInput"
	RateLimited     Kind = "RateLimited"
	IndexMissing    Kind = "IndexMissing"
	UpstreamTimeout Kind = "UpstreamTimeout"
	UpstreamError   Kind = "UpstreamError"
	CacheError      Kind = "CacheError"
	ConfigMissing   Kind = "ConfigMissing"
)

// Error carries a Kind plus a sanitized public message and an optional
// wrapped cause for logging.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts an *Error from err, if any is present in its chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps a Kind to its wire status per spec §7. Kinds that are
// "transparent" (CacheError, ConfigMissing) never reach the HTTP layer as
// errors — callers absorb them upstream — but a status is still defined so
// a caller that forgets to absorb one fails safe rather than silently.
func HTTPStatus(k Kind) int {
	switch k {
	case InvalidInput:
		return http.StatusBadRequest
	case RateLimited:
		return http.StatusTooManyRequests
	case IndexMissing:
		return http.StatusOK
	case UpstreamTimeout:
		return http.StatusGatewayTimeout
	case UpstreamError:
		return http.StatusBadGateway
	case CacheError, ConfigMissing:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
