// Package common defines the error taxonomy and shared constants used across
// eventpass layers. Callers should use errors.Is against the sentinel values
// below; any *Error of the same Kind matches its sentinel.
package common

import (
	"errors"
)

// Kind classifies a domain error. The HTTP layer maps each kind to a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooManyRequests
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindTooManyRequests:
		return "too many requests"
	default:
		return "internal error"
	}
}

// Error is a domain error carrying a user-facing message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// Is reports whether target is an *Error of the same kind. Sentinels carry no
// message, so errors.Is(NewError(KindNotFound, "Event not found"), ErrorNotFound) holds.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// NewError builds a domain error of the given kind.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf returns the Kind of err, or KindInternal when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	// Repository-level errors.
	ErrorNotFound = &Error{Kind: KindNotFound}
	ErrorConflict = &Error{Kind: KindConflict}

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
