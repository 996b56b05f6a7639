// Package errors defines the service error taxonomy and its HTTP/OAuth2 mapping.
package errors

import (
	stderrors "errors"
	"net/http"
)

// Kind classifies an Error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindInvalidClient
	KindNotFound
	KindInvalidGrant
	KindTokenInvalid
	KindServiceUnavailable
	KindDatabase
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindInvalidClient:
		return "invalid_client"
	case KindNotFound:
		return "not_found"
	case KindInvalidGrant:
		return "invalid_grant"
	case KindTokenInvalid:
		return "token_invalid"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindDatabase:
		return "database"
	default:
		return "internal"
	}
}

// GenericAuthMessage is the only message a failed verification ever returns.
const GenericAuthMessage = "invalid challenge or signature"

// Error is a classified service error. Message is safe to show to callers; Err is not.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}

	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the response status for the error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInvalidGrant:
		return http.StatusBadRequest
	case KindAuthentication, KindInvalidClient, KindTokenInvalid:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func NewValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewAuthentication wraps cause behind the generic verification message.
func NewAuthentication(cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: GenericAuthMessage, Err: cause}
}

func NewInvalidClient(msg string) *Error {
	return &Error{Kind: KindInvalidClient, Message: msg}
}

func NewNotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func NewInvalidGrant(msg string) *Error {
	return &Error{Kind: KindInvalidGrant, Message: msg}
}

func NewTokenInvalid(cause error) *Error {
	return &Error{Kind: KindTokenInvalid, Message: "invalid token", Err: cause}
}

func NewServiceUnavailable(msg string, cause error) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: msg, Err: cause}
}

func NewDatabase(op string, cause error) *Error {
	return &Error{Kind: KindDatabase, Message: op + " failed", Err: cause}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}

	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)

	return ok && e.Kind == kind
}

// HTTPStatus maps any error to a response status; unclassified errors are 500.
func HTTPStatus(err error) int {
	if e, ok := As(err); ok {
		return e.HTTPStatus()
	}

	return http.StatusInternalServerError
}
