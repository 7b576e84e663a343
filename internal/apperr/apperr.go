// Package apperr is the error taxonomy shared by the services and the HTTP
// layer. Services return *Error values; handlers turn them into a status code
// and an {"error", "detail"} body.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicate
	KindAuth
	KindForbidden
	KindNotFound
	KindProvider
	KindConfig
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindProvider:
		return "provider"
	case KindConfig:
		return "config"
	case KindNetwork:
		return "network"
	default:
		return "internal"
	}
}

// Error carries a user-facing message, an optional detail payload and the
// underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Detail  any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrAuth)
// works for every auth failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrDuplicate  = &Error{Kind: KindDuplicate}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrProvider   = &Error{Kind: KindProvider}
	ErrConfig     = &Error{Kind: KindConfig}
	ErrNetwork    = &Error{Kind: KindNetwork}
)

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func Duplicate(msg string) *Error { return &Error{Kind: KindDuplicate, Message: msg} }

func Auth(msg string) *Error { return &Error{Kind: KindAuth, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Config(msg string) *Error { return &Error{Kind: KindConfig, Message: msg} }

// Provider reports an upstream reply that was an error or malformed. detail
// is echoed to the client.
func Provider(msg string, detail any) *Error {
	return &Error{Kind: KindProvider, Message: msg, Detail: detail}
}

// Network wraps a transport failure of an outbound call.
func Network(msg string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal
// when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation, KindDuplicate:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Body renders err as the JSON error payload. Internal errors never leak
// their cause.
func Body(err error) map[string]any {
	var e *Error
	if !errors.As(err, &e) {
		return map[string]any{"error": "internal server error"}
	}
	body := map[string]any{"error": e.Message}
	switch {
	case e.Detail != nil:
		body["detail"] = e.Detail
	case e.Err != nil && e.Kind != KindInternal:
		body["detail"] = e.Err.Error()
	}
	return body
}
